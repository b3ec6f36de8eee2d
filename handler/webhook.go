package handler

import (
	"context"
	"net/http"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/logger"
)

// WebhookProcessor is implemented by *baokim.Webhook.
type WebhookProcessor interface {
	Process(ctx context.Context, raw []byte, signature string, verify bool) baokim.WebhookReply
}

// WebhookHandler receives gateway notifications. Every reply is HTTP 200
// with the gateway envelope.
type WebhookHandler struct {
	processor WebhookProcessor
	verify    bool
}

// NewWebhookHandler creates a webhook receiver. verify=false skips the
// signature check and is meant for sandbox testing only.
func NewWebhookHandler(processor WebhookProcessor, verify bool) *WebhookHandler {
	if !verify {
		logger.Warn("Webhook signature verification is disabled", logger.LogContext{Operation: "webhook"})
	}
	return &WebhookHandler{processor: processor, verify: verify}
}

// Receive handles POST /webhooks/baokim
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := baokim.ReadBody(w, r)
	if err != nil {
		baokim.WriteReply(w, baokim.ReplyInvalidJSON)
		return
	}

	reply := h.processor.Process(r.Context(), raw, r.Header.Get(baokim.SignatureHeader), h.verify)
	baokim.WriteReply(w, reply)
}
