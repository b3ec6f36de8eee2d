package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/logger"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// observeTimeout bounds the background indexing started by the observers.
const observeTimeout = 5 * time.Second

// APICallLog represents one gateway call
type APICallLog struct {
	Timestamp   time.Time   `json:"timestamp"`
	Endpoint    string      `json:"endpoint"`
	RequestID   string      `json:"request_id"`
	GatewayCode *int        `json:"gateway_code,omitempty"`
	Success     bool        `json:"success"`
	Request     RequestLog  `json:"request"`
	Response    ResponseLog `json:"response"`
	Error       *ErrorInfo  `json:"error,omitempty"`
}

// RequestLog represents request details
type RequestLog struct {
	Body string `json:"body,omitempty"`
}

// ResponseLog represents response details
type ResponseLog struct {
	StatusCode       int    `json:"status_code"`
	Body             string `json:"body,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// WebhookLog represents one webhook delivery and the reply sent
type WebhookLog struct {
	Timestamp        time.Time `json:"timestamp"`
	Operation        string    `json:"operation"`
	Verified         bool      `json:"verified"`
	MrcOrderID       string    `json:"mrc_order_id,omitempty"`
	ReplyCode        int       `json:"reply_code"`
	ReplyMessage     string    `json:"reply_message"`
	Body             string    `json:"body,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// Logger handles OpenSearch logging operations. It implements
// baokim.CallObserver, baokim.WebhookObserver and logger.Sink.
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// ObserveCall indexes the call in the background.
func (l *Logger) ObserveCall(_ context.Context, rec baokim.CallRecord) {
	if !l.client.IsEnabled() {
		return
	}
	entry := APICallLogFromRecord(rec, time.Now())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
		defer cancel()
		if err := l.LogAPICall(ctx, entry); err != nil {
			logger.Warn("Failed to index API call: "+err.Error(), logger.LogContext{RequestID: entry.RequestID})
		}
	}()
}

// ObserveWebhook indexes the delivery in the background.
func (l *Logger) ObserveWebhook(_ context.Context, ev baokim.WebhookEvent) {
	if !l.client.IsEnabled() {
		return
	}
	entry := WebhookLogFromEvent(ev)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
		defer cancel()
		if err := l.LogWebhook(ctx, entry); err != nil {
			logger.Warn("Failed to index webhook: "+err.Error(), logger.LogContext{Operation: entry.Operation})
		}
	}()
}

// APICallLogFromRecord converts an observer record into an index document.
func APICallLogFromRecord(rec baokim.CallRecord, at time.Time) APICallLog {
	entry := APICallLog{
		Timestamp:   at,
		Endpoint:    rec.Endpoint,
		RequestID:   rec.RequestID,
		GatewayCode: rec.Code,
		Success:     rec.Success,
		Request:     RequestLog{Body: rec.RequestBody},
		Response: ResponseLog{
			StatusCode:       rec.StatusCode,
			Body:             rec.ResponseBody,
			ProcessingTimeMs: rec.Duration.Milliseconds(),
		},
	}
	if rec.Err != nil {
		entry.Error = &ErrorInfo{Kind: string(baokim.KindOf(rec.Err)), Message: rec.Err.Error()}
	}
	return entry
}

// WebhookLogFromEvent converts an observer event into an index document.
func WebhookLogFromEvent(ev baokim.WebhookEvent) WebhookLog {
	return WebhookLog{
		Timestamp:        ev.ReceivedAt,
		Operation:        string(ev.Operation),
		Verified:         ev.Verified,
		MrcOrderID:       ev.MrcOrderID,
		ReplyCode:        ev.ReplyCode,
		ReplyMessage:     ev.ReplyMessage,
		Body:             baokim.MaskSecrets(ev.RawBody),
		ProcessingTimeMs: ev.Duration.Milliseconds(),
	}
}

// LogAPICall indexes a gateway call.
func (l *Logger) LogAPICall(ctx context.Context, entry APICallLog) error {
	if !l.client.IsEnabled() {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.New().String()
	}
	return l.index(ctx, IndexAPICalls, entry)
}

// LogWebhook indexes a webhook delivery.
func (l *Logger) LogWebhook(ctx context.Context, entry WebhookLog) error {
	if !l.client.IsEnabled() {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return l.index(ctx, IndexWebhooks, entry)
}

// LogSystemEvent logs a system event to OpenSearch
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, IndexSystemLogs, entry)
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

// search runs query against indexName and decodes each hit into out.
func (l *Logger) search(ctx context.Context, indexName string, query map[string]any, size int, out func(json.RawMessage) error) error {
	if !l.client.IsEnabled() {
		return fmt.Errorf("logging is disabled")
	}

	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": size,
	}
	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return fmt.Errorf("failed to decode search results: %w", err)
	}

	for _, hit := range searchResult.Hits.Hits {
		if err := out(hit.Source); err != nil {
			return fmt.Errorf("failed to decode hit: %w", err)
		}
	}
	return nil
}

// GetOrderWebhooks returns the deliveries for one merchant order, newest first.
func (l *Logger) GetOrderWebhooks(ctx context.Context, mrcOrderID string) ([]WebhookLog, error) {
	query := map[string]any{
		"term": map[string]any{"mrc_order_id": mrcOrderID},
	}

	logs := []WebhookLog{}
	err := l.search(ctx, IndexWebhooks, query, 100, func(raw json.RawMessage) error {
		var entry WebhookLog
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		logs = append(logs, entry)
		return nil
	})
	return logs, err
}

// GetRecentErrorCalls returns failed gateway calls from the last hours.
func (l *Logger) GetRecentErrorCalls(ctx context.Context, hours int) ([]APICallLog, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
			},
			"should": []map[string]any{
				{"exists": map[string]any{"field": "error.kind"}},
				{"term": map[string]any{"success": false}},
			},
			"minimum_should_match": 1,
		},
	}

	logs := []APICallLog{}
	err := l.search(ctx, IndexAPICalls, query, 100, func(raw json.RawMessage) error {
		var entry APICallLog
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		logs = append(logs, entry)
		return nil
	})
	return logs, err
}

// GetEndpointStats aggregates gateway calls per endpoint over the last hours.
func (l *Logger) GetEndpointStats(ctx context.Context, hours int) (map[string]any, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	aggQuery := map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)},
			},
		},
		"aggs": map[string]any{
			"endpoints": map[string]any{
				"terms": map[string]any{"field": "endpoint", "size": 20},
				"aggs": map[string]any{
					"success_count":       map[string]any{"filter": map[string]any{"term": map[string]any{"success": true}}},
					"avg_processing_time": map[string]any{"avg": map[string]any{"field": "response.processing_time_ms"}},
					"gateway_codes":       map[string]any{"terms": map[string]any{"field": "gateway_code", "size": 10}},
				},
			},
		},
		"size": 0,
	}

	queryJSON, err := json.Marshal(aggQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregation query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{IndexAPICalls},
		Body:  bytes.NewReader(queryJSON),
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("aggregation search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch aggregation error: %s", res.String())
	}

	var result map[string]any
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation results: %w", err)
	}
	return result, nil
}
