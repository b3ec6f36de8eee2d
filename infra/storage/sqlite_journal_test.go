package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestNewSQLiteJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")

	j, err := NewSQLiteJournal(dbPath)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
	assert.NoError(t, j.Ping(context.Background()))
}

func TestSQLiteJournal_Webhooks(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	received := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)

	j.ObserveWebhook(ctx, baokim.WebhookEvent{
		Operation:    baokim.OperationPayment,
		Verified:     true,
		MrcOrderID:   "ORDER-1",
		ReplyCode:    0,
		ReplyMessage: "Success",
		RawBody:      `{"operation":"PAYMENT_TRANS"}`,
		ReceivedAt:   received,
		Duration:     15 * time.Millisecond,
	})
	j.ObserveWebhook(ctx, baokim.WebhookEvent{
		Operation:    baokim.OperationUnknown,
		ReplyCode:    104,
		ReplyMessage: "Invalid signature",
		RawBody:      `{}`,
		ReceivedAt:   received.Add(time.Minute),
	})
	j.ObserveWebhook(ctx, baokim.WebhookEvent{
		Operation:  baokim.OperationRefund,
		Verified:   true,
		MrcOrderID: "ORDER-1",
		ReplyCode:  0,
		ReceivedAt: received.Add(2 * time.Minute),
	})

	all, err := j.RecentWebhooks(ctx, WebhookFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "REFUND_TRANS", all[0].Operation)
	assert.Equal(t, "PAYMENT_TRANS", all[2].Operation)
	assert.True(t, all[2].Verified)
	assert.Equal(t, int64(15), all[2].DurationMs)
	assert.True(t, received.Equal(all[2].ReceivedAt))

	byOrder, err := j.RecentWebhooks(ctx, WebhookFilter{MrcOrderID: "ORDER-1"})
	require.NoError(t, err)
	assert.Len(t, byOrder, 2)

	byOp, err := j.RecentWebhooks(ctx, WebhookFilter{Operation: "UNKNOWN"})
	require.NoError(t, err)
	require.Len(t, byOp, 1)
	assert.Equal(t, 104, byOp[0].ReplyCode)
	assert.False(t, byOp[0].Verified)

	limited, err := j.RecentWebhooks(ctx, WebhookFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteJournal_Calls(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	code := 707

	j.ObserveCall(ctx, baokim.CallRecord{
		Endpoint:     "/b2b/core/api/ext/mm/order/send",
		RequestID:    "M1_20250301083000_abc",
		RequestBody:  `{"mrc_order_id":"O1"}`,
		StatusCode:   200,
		ResponseBody: `{"code":707}`,
		Code:         &code,
		Duration:     120 * time.Millisecond,
	})
	j.ObserveCall(ctx, baokim.CallRecord{
		Endpoint: baokim.TokenEndpoint,
		Err:      errors.New("connection refused"),
	})

	calls, err := j.RecentCalls(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, baokim.TokenEndpoint, calls[0].Endpoint)
	assert.Nil(t, calls[0].Code)
	assert.Equal(t, "connection refused", calls[0].Error)

	require.NotNil(t, calls[1].Code)
	assert.Equal(t, 707, *calls[1].Code)
	assert.False(t, calls[1].Success)
	assert.Equal(t, int64(120), calls[1].DurationMs)

	orders, err := j.RecentCalls(ctx, "/b2b/core/api/ext/mm/order/send", 10)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestSQLiteJournal_Stats(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.ObserveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationPayment, ReplyCode: 0})
	j.ObserveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationUnknown, ReplyCode: 422})
	j.ObserveCall(ctx, baokim.CallRecord{Endpoint: "/x"})

	stats, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["webhook_events"])
	assert.Equal(t, 1, stats["rejected_webhooks"])
	assert.Equal(t, 1, stats["gateway_calls"])
	assert.Contains(t, stats, "db_path")
}

func TestSQLiteJournal_Prune(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now.Add(-40 * 24 * time.Hour) }

	j.ObserveCall(ctx, baokim.CallRecord{Endpoint: "/old"})
	j.ObserveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationPayment, ReceivedAt: now.Add(-40 * 24 * time.Hour)})

	j.now = func() time.Time { return now }
	j.ObserveCall(ctx, baokim.CallRecord{Endpoint: "/new"})
	j.ObserveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationRefund, ReceivedAt: now.Add(-time.Hour)})

	removed, err := j.Prune(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	calls, err := j.RecentCalls(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "/new", calls[0].Endpoint)

	events, err := j.RecentWebhooks(ctx, WebhookFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(baokim.OperationRefund), events[0].Operation)
}

func TestSQLiteJournal_RunRetention(t *testing.T) {
	j := newTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	j.ObserveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationPayment, ReceivedAt: now.Add(-48 * time.Hour)})

	done := make(chan struct{})
	go func() {
		j.RunRetention(ctx, 24*time.Hour, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		events, err := j.RecentWebhooks(context.Background(), WebhookFilter{})
		return err == nil && len(events) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retention did not stop")
	}

	// Disabled retention returns at once.
	j.RunRetention(context.Background(), 0, time.Hour)
}

func TestSQLiteJournal_ConcurrentWrites(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.SaveWebhook(ctx, baokim.WebhookEvent{Operation: baokim.OperationPayment}))
		}()
	}
	wg.Wait()

	records, err := j.RecentWebhooks(ctx, WebhookFilter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, DefaultListLimit, clampLimit(-5))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, MaxListLimit, clampLimit(10000))
}

func TestSQLiteJournal_MasksWebhookSecrets(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.SaveWebhook(ctx, baokim.WebhookEvent{
		Operation: baokim.OperationCancelAutoDebit,
		RawBody:   `{"operation":"CANCEL_AUTO_DEBIT","token":"saved-card-token"}`,
	}))

	records, err := j.RecentWebhooks(ctx, WebhookFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].RawBody, "saved-card-token")
	assert.Contains(t, records[0].RawBody, `"token":"***"`)
}
