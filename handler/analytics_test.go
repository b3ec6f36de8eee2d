package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mstgnz/gobaokim/infra/opensearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ CallAnalytics = (*opensearch.Logger)(nil)

type mockAnalytics struct {
	hours   int
	orderID string
	err     error
}

func (m *mockAnalytics) GetEndpointStats(ctx context.Context, hours int) (map[string]any, error) {
	m.hours = hours
	if m.err != nil {
		return nil, m.err
	}
	return map[string]any{"aggregations": map[string]any{"endpoints": map[string]any{"buckets": []any{}}}}, nil
}

func (m *mockAnalytics) GetRecentErrorCalls(ctx context.Context, hours int) ([]opensearch.APICallLog, error) {
	m.hours = hours
	if m.err != nil {
		return nil, m.err
	}
	return []opensearch.APICallLog{{Endpoint: "/b2b/core/api/ext/mm/order/send"}}, nil
}

func (m *mockAnalytics) GetOrderWebhooks(ctx context.Context, mrcOrderID string) ([]opensearch.WebhookLog, error) {
	m.orderID = mrcOrderID
	if m.err != nil {
		return nil, m.err
	}
	return []opensearch.WebhookLog{{Operation: "PAYMENT_TRANS", MrcOrderID: mrcOrderID}}, nil
}

func TestAnalyticsHandler_GetEndpointStats(t *testing.T) {
	m := &mockAnalytics{}
	h := NewAnalyticsHandler(m)

	rr := httptest.NewRecorder()
	h.GetEndpointStats(rr, httptest.NewRequest(http.MethodGet, "/v1/analytics/endpoints?hours=6", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 6, m.hours)
	assert.Contains(t, decodeResponse(t, rr).Data, "aggregations")

	rr = httptest.NewRecorder()
	h.GetEndpointStats(rr, httptest.NewRequest(http.MethodGet, "/v1/analytics/endpoints?hours=1000", nil))
	assert.Equal(t, 24, m.hours)
}

func TestAnalyticsHandler_GetRecentErrors(t *testing.T) {
	m := &mockAnalytics{}
	h := NewAnalyticsHandler(m)

	rr := httptest.NewRecorder()
	h.GetRecentErrors(rr, httptest.NewRequest(http.MethodGet, "/v1/analytics/errors", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 24, m.hours)
	calls := decodeResponse(t, rr).Data.([]any)
	require.Len(t, calls, 1)
}

func TestAnalyticsHandler_GetOrderWebhooks(t *testing.T) {
	m := &mockAnalytics{}
	h := NewAnalyticsHandler(m)

	rr := httptest.NewRecorder()
	h.GetOrderWebhooks(rr, newRequest(http.MethodGet, "/v1/analytics/orders/O1/webhooks", "", map[string]string{"mrcOrderID": "O1"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "O1", m.orderID)

	rr = httptest.NewRecorder()
	h.GetOrderWebhooks(rr, newRequest(http.MethodGet, "/v1/analytics/orders//webhooks", "", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnalyticsHandler_Unavailable(t *testing.T) {
	h := NewAnalyticsHandler(&mockAnalytics{err: errors.New("logging is disabled")})

	rr := httptest.NewRecorder()
	h.GetEndpointStats(rr, httptest.NewRequest(http.MethodGet, "/v1/analytics/endpoints", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.GetRecentErrors(rr, httptest.NewRequest(http.MethodGet, "/v1/analytics/errors", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "logging is disabled", decodeResponse(t, rr).Error)
}
