// Package metrics exposes Prometheus counters for gateway calls, token
// refreshes and webhook replies.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements baokim.CallObserver and baokim.WebhookObserver.
type Collector struct {
	registry *prometheus.Registry

	gatewayCallsTotal    *prometheus.CounterVec
	gatewayCallDuration  *prometheus.HistogramVec
	gatewayErrorsTotal   *prometheus.CounterVec
	tokenRefreshesTotal  *prometheus.CounterVec
	webhookRepliesTotal  *prometheus.CounterVec
	webhookDuration      *prometheus.HistogramVec
	webhookRejectedTotal prometheus.Counter
}

// NewCollector registers the metrics on a private registry together with
// the Go and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		gatewayCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baokim_gateway_calls_total",
				Help: "Total number of gateway calls by endpoint and outcome",
			},
			[]string{"endpoint", "success"},
		),
		gatewayCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "baokim_gateway_call_duration_seconds",
				Help:    "Gateway call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		gatewayErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baokim_gateway_errors_total",
				Help: "Total number of failed gateway calls by error kind",
			},
			[]string{"endpoint", "kind"},
		),
		tokenRefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baokim_token_refreshes_total",
				Help: "Total number of access token fetches by outcome",
			},
			[]string{"success"},
		),
		webhookRepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baokim_webhook_replies_total",
				Help: "Total number of webhook replies by operation and reply code",
			},
			[]string{"operation", "code"},
		),
		webhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "baokim_webhook_duration_seconds",
				Help:    "Webhook processing time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		webhookRejectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "baokim_webhook_signature_rejected_total",
				Help: "Total number of webhooks rejected for an invalid signature",
			},
		),
	}
}

// ObserveCall records a gateway call. Token fetches are also counted as
// refreshes.
func (c *Collector) ObserveCall(_ context.Context, rec baokim.CallRecord) {
	success := strconv.FormatBool(rec.Success && rec.Err == nil)
	c.gatewayCallsTotal.WithLabelValues(rec.Endpoint, success).Inc()
	c.gatewayCallDuration.WithLabelValues(rec.Endpoint).Observe(rec.Duration.Seconds())
	if rec.Err != nil {
		kind := string(baokim.KindOf(rec.Err))
		if kind == "" {
			kind = "unknown"
		}
		c.gatewayErrorsTotal.WithLabelValues(rec.Endpoint, kind).Inc()
	}
	if rec.Endpoint == baokim.TokenEndpoint {
		c.tokenRefreshesTotal.WithLabelValues(success).Inc()
	}
}

// ObserveWebhook records a processed delivery.
func (c *Collector) ObserveWebhook(_ context.Context, ev baokim.WebhookEvent) {
	op := string(ev.Operation)
	c.webhookRepliesTotal.WithLabelValues(op, strconv.Itoa(ev.ReplyCode)).Inc()
	c.webhookDuration.WithLabelValues(op).Observe(ev.Duration.Seconds())
	if ev.ReplyCode == baokim.CodeSignatureInvalid {
		c.webhookRejectedTotal.Inc()
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
