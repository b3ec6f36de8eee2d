package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gobaokim/infra/opensearch"
	"github.com/mstgnz/gobaokim/infra/response"
)

// CallAnalytics is implemented by *opensearch.Logger.
type CallAnalytics interface {
	GetEndpointStats(ctx context.Context, hours int) (map[string]any, error)
	GetRecentErrorCalls(ctx context.Context, hours int) ([]opensearch.APICallLog, error)
	GetOrderWebhooks(ctx context.Context, mrcOrderID string) ([]opensearch.WebhookLog, error)
}

// AnalyticsHandler serves reports built from the indexed logs.
type AnalyticsHandler struct {
	logs CallAnalytics
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(logs CallAnalytics) *AnalyticsHandler {
	return &AnalyticsHandler{logs: logs}
}

// GetEndpointStats handles GET /v1/analytics/endpoints?hours=
func (h *AnalyticsHandler) GetEndpointStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.logs.GetEndpointStats(ctx, queryInt(r, "hours", 24, 168))
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, "Failed to get endpoint stats", err)
		return
	}

	response.Success(w, http.StatusOK, "Endpoint stats retrieved", stats)
}

// GetRecentErrors handles GET /v1/analytics/errors?hours=
func (h *AnalyticsHandler) GetRecentErrors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	calls, err := h.logs.GetRecentErrorCalls(ctx, queryInt(r, "hours", 24, 168))
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, "Failed to get failed calls", err)
		return
	}

	response.Success(w, http.StatusOK, "Failed calls retrieved", calls)
}

// GetOrderWebhooks handles GET /v1/analytics/orders/{mrcOrderID}/webhooks
func (h *AnalyticsHandler) GetOrderWebhooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	mrcOrderID := chi.URLParam(r, "mrcOrderID")
	if mrcOrderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	logs, err := h.logs.GetOrderWebhooks(ctx, mrcOrderID)
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, "Failed to get order webhooks", err)
		return
	}

	response.Success(w, http.StatusOK, "Order webhooks retrieved", logs)
}
