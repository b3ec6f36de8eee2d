package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mstgnz/gobaokim/infra/response"
	"github.com/mstgnz/gobaokim/infra/storage"
)

// WebhookJournal is implemented by *storage.SQLiteJournal.
type WebhookJournal interface {
	RecentWebhooks(ctx context.Context, f storage.WebhookFilter) ([]storage.WebhookRecord, error)
	RecentCalls(ctx context.Context, endpoint string, limit int) ([]storage.CallRecord, error)
	Stats(ctx context.Context) (map[string]any, error)
}

// EventsHandler lists journaled webhook deliveries and gateway calls.
type EventsHandler struct {
	journal WebhookJournal
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(journal WebhookJournal) *EventsHandler {
	return &EventsHandler{journal: journal}
}

// ListWebhooks handles GET /v1/webhooks/events?operation=&mrc_order_id=&limit=
func (h *EventsHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	records, err := h.journal.RecentWebhooks(ctx, storage.WebhookFilter{
		Operation:  q.Get("operation"),
		MrcOrderID: q.Get("mrc_order_id"),
		Limit:      queryInt(r, "limit", storage.DefaultListLimit, storage.MaxListLimit),
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to list webhook events", err)
		return
	}

	response.Success(w, http.StatusOK, "Webhook events retrieved", records)
}

// ListCalls handles GET /v1/calls?endpoint=&limit=
func (h *EventsHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	records, err := h.journal.RecentCalls(ctx, r.URL.Query().Get("endpoint"),
		queryInt(r, "limit", storage.DefaultListLimit, storage.MaxListLimit))
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to list gateway calls", err)
		return
	}

	response.Success(w, http.StatusOK, "Gateway calls retrieved", records)
}

// GetStats handles GET /v1/journal/stats
func (h *EventsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.journal.Stats(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to get journal stats", err)
		return
	}

	response.Success(w, http.StatusOK, "Journal stats retrieved", stats)
}
