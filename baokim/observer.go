package baokim

import (
	"context"
	"regexp"
	"time"
)

// CallRecord describes one POST to the gateway.
type CallRecord struct {
	Endpoint     string
	RequestID    string
	RequestBody  string
	StatusCode   int
	ResponseBody string
	Code         *int
	Success      bool
	Duration     time.Duration
	Err          error
}

// CallObserver is notified after every gateway call, including token fetches.
type CallObserver interface {
	ObserveCall(ctx context.Context, rec CallRecord)
}

// WebhookEvent describes one inbound webhook delivery and the reply sent.
type WebhookEvent struct {
	Operation    Operation
	Verified     bool
	MrcOrderID   string
	ReplyCode    int
	ReplyMessage string
	RawBody      string
	ReceivedAt   time.Time
	Duration     time.Duration
}

// WebhookObserver is notified after every webhook is processed.
type WebhookObserver interface {
	ObserveWebhook(ctx context.Context, ev WebhookEvent)
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`("client_secret"\s*:\s*)"[^"]*"`),
	regexp.MustCompile(`("access_token"\s*:\s*)"[^"]*"`),
	regexp.MustCompile(`("token"\s*:\s*)"[^"]*"`),
}

// MaskSecrets redacts credentials and tokens in a JSON text.
func MaskSecrets(s string) string {
	for _, re := range secretPatterns {
		s = re.ReplaceAllString(s, `${1}"***"`)
	}
	return s
}

func notifyCall(ctx context.Context, observers []CallObserver, rec CallRecord) {
	rec.RequestBody = MaskSecrets(rec.RequestBody)
	rec.ResponseBody = MaskSecrets(rec.ResponseBody)
	for _, o := range observers {
		o.ObserveCall(ctx, rec)
	}
}
