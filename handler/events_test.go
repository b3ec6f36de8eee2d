package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ WebhookJournal = (*storage.SQLiteJournal)(nil)

func newJournal(t *testing.T) *storage.SQLiteJournal {
	t.Helper()
	j, err := storage.NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestEventsHandler_ListWebhooks(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, j.SaveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationPayment, MrcOrderID: "O1", ReceivedAt: now}))
	require.NoError(t, j.SaveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationRefund, MrcOrderID: "O1", ReceivedAt: now.Add(time.Second)}))
	require.NoError(t, j.SaveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationPayment, MrcOrderID: "O2", ReceivedAt: now.Add(2 * time.Second)}))

	h := NewEventsHandler(j)

	rr := httptest.NewRecorder()
	h.ListWebhooks(rr, httptest.NewRequest(http.MethodGet, "/v1/webhooks/events?mrc_order_id=O1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeResponse(t, rr)
	assert.True(t, res.Success)
	assert.Len(t, res.Data, 2)

	rr = httptest.NewRecorder()
	h.ListWebhooks(rr, httptest.NewRequest(http.MethodGet, "/v1/webhooks/events?operation=PAYMENT_TRANS&limit=1", nil))
	records := decodeResponse(t, rr).Data.([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "O2", records[0].(map[string]any)["mrc_order_id"])
}

func TestEventsHandler_ListCallsAndStats(t *testing.T) {
	j := newJournal(t)
	ctx := context.Background()
	require.NoError(t, j.SaveCall(ctx, baokim.CallRecord{Endpoint: "/a", Success: true}))
	require.NoError(t, j.SaveCall(ctx, baokim.CallRecord{Endpoint: "/b"}))

	h := NewEventsHandler(j)

	rr := httptest.NewRecorder()
	h.ListCalls(rr, httptest.NewRequest(http.MethodGet, "/v1/calls?endpoint=/a", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeResponse(t, rr).Data, 1)

	rr = httptest.NewRecorder()
	h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/v1/journal/stats", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	stats := decodeResponse(t, rr).Data.(map[string]any)
	assert.Equal(t, float64(2), stats["gateway_calls"])
}

type failingJournal struct{}

func (failingJournal) RecentWebhooks(ctx context.Context, f storage.WebhookFilter) ([]storage.WebhookRecord, error) {
	return nil, errors.New("disk I/O error")
}

func (failingJournal) RecentCalls(ctx context.Context, endpoint string, limit int) ([]storage.CallRecord, error) {
	return nil, errors.New("disk I/O error")
}

func (failingJournal) Stats(ctx context.Context) (map[string]any, error) {
	return nil, errors.New("disk I/O error")
}

func TestEventsHandler_Errors(t *testing.T) {
	h := NewEventsHandler(failingJournal{})

	for _, fn := range []http.HandlerFunc{h.ListWebhooks, h.ListCalls, h.GetStats} {
		rr := httptest.NewRecorder()
		fn(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "disk I/O error", decodeResponse(t, rr).Error)
	}
}
