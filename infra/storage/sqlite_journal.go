// Package storage keeps a local SQLite journal of webhook deliveries and
// gateway calls.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// WebhookRecord is one journaled webhook delivery.
type WebhookRecord struct {
	ID           int64     `json:"id"`
	Operation    string    `json:"operation"`
	Verified     bool      `json:"verified"`
	MrcOrderID   string    `json:"mrc_order_id,omitempty"`
	ReplyCode    int       `json:"reply_code"`
	ReplyMessage string    `json:"reply_message"`
	RawBody      string    `json:"raw_body"`
	ReceivedAt   time.Time `json:"received_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// CallRecord is one journaled gateway call. Bodies are already masked.
type CallRecord struct {
	ID           int64     `json:"id"`
	Endpoint     string    `json:"endpoint"`
	RequestID    string    `json:"request_id,omitempty"`
	StatusCode   int       `json:"status_code"`
	Code         *int      `json:"code,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	RequestBody  string    `json:"request_body"`
	ResponseBody string    `json:"response_body"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// WebhookFilter narrows RecentWebhooks.
type WebhookFilter struct {
	Operation  string
	MrcOrderID string
	Limit      int
}

// SQLiteJournal records webhooks and calls. It implements
// baokim.WebhookObserver and baokim.CallObserver.
type SQLiteJournal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewSQLiteJournal opens or creates the journal at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	j := &SQLiteJournal{db: db, path: dbPath, now: time.Now}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite journal initialized", logger.LogContext{
		Fields: map[string]any{"path": dbPath},
	})
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS webhook_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		verified INTEGER NOT NULL,
		mrc_order_id TEXT NOT NULL DEFAULT '',
		reply_code INTEGER NOT NULL,
		reply_message TEXT NOT NULL,
		raw_body TEXT NOT NULL,
		received_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_webhook_order ON webhook_events(mrc_order_id);
	CREATE INDEX IF NOT EXISTS idx_webhook_operation ON webhook_events(operation);

	CREATE TABLE IF NOT EXISTS gateway_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint TEXT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL,
		code INTEGER,
		success INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL,
		response_body TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calls_endpoint ON gateway_calls(endpoint);
	`
	_, err := j.db.Exec(query)
	return err
}

// retryOperation retries op while SQLite reports the database as busy.
func (j *SQLiteJournal) retryOperation(op func() error, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "SQLITE_BUSY") && !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		if attempt < maxRetries {
			time.Sleep(time.Duration(10*(1<<attempt)) * time.Millisecond)
		}
	}
	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// ObserveWebhook journals a delivery. Failures are logged, never returned,
// so the reply to the gateway is unaffected.
func (j *SQLiteJournal) ObserveWebhook(ctx context.Context, ev baokim.WebhookEvent) {
	if err := j.SaveWebhook(ctx, ev); err != nil {
		logger.Error("Failed to journal webhook", err, logger.LogContext{
			Operation: string(ev.Operation),
			Fields:    map[string]any{"mrc_order_id": ev.MrcOrderID},
		})
	}
}

// SaveWebhook inserts a webhook event.
func (j *SQLiteJournal) SaveWebhook(ctx context.Context, ev baokim.WebhookEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	receivedAt := ev.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = j.now()
	}

	return j.retryOperation(func() error {
		_, err := j.db.ExecContext(ctx, `
		INSERT INTO webhook_events
			(operation, verified, mrc_order_id, reply_code, reply_message, raw_body, received_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(ev.Operation), ev.Verified, ev.MrcOrderID, ev.ReplyCode, ev.ReplyMessage,
			baokim.MaskSecrets(ev.RawBody), receivedAt.UTC().Format(time.RFC3339Nano), ev.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to save webhook event: %w", err)
		}
		return nil
	}, 3)
}

// ObserveCall journals a gateway call.
func (j *SQLiteJournal) ObserveCall(ctx context.Context, rec baokim.CallRecord) {
	if err := j.SaveCall(ctx, rec); err != nil {
		logger.Error("Failed to journal gateway call", err, logger.LogContext{
			RequestID: rec.RequestID,
			Fields:    map[string]any{"endpoint": rec.Endpoint},
		})
	}
}

// SaveCall inserts a gateway call.
func (j *SQLiteJournal) SaveCall(ctx context.Context, rec baokim.CallRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var code any
	if rec.Code != nil {
		code = *rec.Code
	}
	errText := ""
	if rec.Err != nil {
		errText = rec.Err.Error()
	}

	return j.retryOperation(func() error {
		_, err := j.db.ExecContext(ctx, `
		INSERT INTO gateway_calls
			(endpoint, request_id, status_code, code, success, error, request_body, response_body, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Endpoint, rec.RequestID, rec.StatusCode, code, rec.Success, errText,
			rec.RequestBody, rec.ResponseBody, rec.Duration.Milliseconds(), j.now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to save gateway call: %w", err)
		}
		return nil
	}, 3)
}

// RecentWebhooks returns the newest webhook events matching f.
func (j *SQLiteJournal) RecentWebhooks(ctx context.Context, f WebhookFilter) ([]WebhookRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	query := `
	SELECT id, operation, verified, mrc_order_id, reply_code, reply_message, raw_body, received_at, duration_ms
	FROM webhook_events WHERE 1=1`
	var args []any
	if f.Operation != "" {
		query += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.MrcOrderID != "" {
		query += " AND mrc_order_id = ?"
		args = append(args, f.MrcOrderID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook events: %w", err)
	}
	defer rows.Close()

	records := []WebhookRecord{}
	for rows.Next() {
		var r WebhookRecord
		var receivedAt string
		if err := rows.Scan(&r.ID, &r.Operation, &r.Verified, &r.MrcOrderID, &r.ReplyCode,
			&r.ReplyMessage, &r.RawBody, &receivedAt, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		r.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook rows: %w", err)
	}
	return records, nil
}

// RecentCalls returns the newest gateway calls, optionally for one endpoint.
func (j *SQLiteJournal) RecentCalls(ctx context.Context, endpoint string, limit int) ([]CallRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	query := `
	SELECT id, endpoint, request_id, status_code, code, success, error, request_body, response_body, duration_ms, created_at
	FROM gateway_calls`
	var args []any
	if endpoint != "" {
		query += " WHERE endpoint = ?"
		args = append(args, endpoint)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, clampLimit(limit))

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateway calls: %w", err)
	}
	defer rows.Close()

	records := []CallRecord{}
	for rows.Next() {
		var r CallRecord
		var code sql.NullInt64
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.RequestID, &r.StatusCode, &code, &r.Success,
			&r.Error, &r.RequestBody, &r.ResponseBody, &r.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan gateway call: %w", err)
		}
		if code.Valid {
			c := int(code.Int64)
			r.Code = &c
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call rows: %w", err)
	}
	return records, nil
}

// Stats returns row counts and the database size.
func (j *SQLiteJournal) Stats(ctx context.Context) (map[string]any, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := make(map[string]any)

	var webhooks, failedWebhooks, calls int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_events").Scan(&webhooks); err != nil {
		return nil, fmt.Errorf("failed to count webhook events: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_events WHERE reply_code != 0").Scan(&failedWebhooks); err != nil {
		return nil, fmt.Errorf("failed to count rejected webhooks: %w", err)
	}
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM gateway_calls").Scan(&calls); err != nil {
		return nil, fmt.Errorf("failed to count gateway calls: %w", err)
	}
	stats["webhook_events"] = webhooks
	stats["rejected_webhooks"] = failedWebhooks
	stats["gateway_calls"] = calls

	if fileInfo, err := os.Stat(j.path); err == nil {
		stats["db_size_bytes"] = fileInfo.Size()
	}
	stats["db_path"] = j.path

	return stats, nil
}

// Prune deletes webhook events and gateway calls recorded before cutoff.
func (j *SQLiteJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ts := cutoff.UTC().Format(time.RFC3339Nano)
	var removed int64
	for _, stmt := range []string{
		"DELETE FROM webhook_events WHERE received_at < ?",
		"DELETE FROM gateway_calls WHERE created_at < ?",
	} {
		err := j.retryOperation(func() error {
			res, err := j.db.ExecContext(ctx, stmt, ts)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
			return nil
		}, 3)
		if err != nil {
			return removed, fmt.Errorf("failed to prune journal: %w", err)
		}
	}
	return removed, nil
}

// RunRetention prunes rows older than retention every interval until ctx is
// done. A non-positive retention disables it.
func (j *SQLiteJournal) RunRetention(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	prune := func() {
		n, err := j.Prune(ctx, j.now().Add(-retention))
		if err != nil {
			logger.Error("Journal retention failed", err)
			return
		}
		if n > 0 {
			logger.Info("Journal rows pruned", logger.LogContext{
				Fields: map[string]any{"removed": n, "retention": retention.String()},
			})
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// Ping checks the connection.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database connection
func (j *SQLiteJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
