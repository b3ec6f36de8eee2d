package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/baokim/mastersub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ MasterSubOrders = (*mastersub.Orders)(nil)

type mockMasterSubOrders struct {
	createOrderFunc     func(ctx context.Context, req mastersub.OrderRequest) (*baokim.Response, error)
	queryOrderFunc      func(ctx context.Context, mrcOrderID string) (*baokim.Response, error)
	refundOrderFunc     func(ctx context.Context, mrcOrderID string, amount *int64, description string) (*baokim.Response, error)
	cancelAutoDebitFunc func(ctx context.Context, token, urlSuccess, urlFail string) (*baokim.Response, error)
}

func (m *mockMasterSubOrders) CreateOrder(ctx context.Context, req mastersub.OrderRequest) (*baokim.Response, error) {
	if m.createOrderFunc != nil {
		return m.createOrderFunc(ctx, req)
	}
	return gatewayResponse(0, "Success", map[string]any{"order_id": 1}), nil
}

func (m *mockMasterSubOrders) QueryOrder(ctx context.Context, mrcOrderID string) (*baokim.Response, error) {
	if m.queryOrderFunc != nil {
		return m.queryOrderFunc(ctx, mrcOrderID)
	}
	return gatewayResponse(0, "Success", map[string]any{"mrc_order_id": mrcOrderID}), nil
}

func (m *mockMasterSubOrders) RefundOrder(ctx context.Context, mrcOrderID string, amount *int64, description string) (*baokim.Response, error) {
	if m.refundOrderFunc != nil {
		return m.refundOrderFunc(ctx, mrcOrderID, amount, description)
	}
	return gatewayResponse(0, "Success", nil), nil
}

func (m *mockMasterSubOrders) CancelAutoDebit(ctx context.Context, token, urlSuccess, urlFail string) (*baokim.Response, error) {
	if m.cancelAutoDebitFunc != nil {
		return m.cancelAutoDebitFunc(ctx, token, urlSuccess, urlFail)
	}
	return gatewayResponse(0, "Success", nil), nil
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	var got mastersub.OrderRequest
	h := NewOrderHandler(&mockMasterSubOrders{
		createOrderFunc: func(ctx context.Context, req mastersub.OrderRequest) (*baokim.Response, error) {
			got = req
			return gatewayResponse(0, "Success", map[string]any{"payment_url": "https://pay"}), nil
		},
	})

	rr := httptest.NewRecorder()
	h.CreateOrder(rr, newRequest(http.MethodPost, "/v1/orders",
		`{"mrc_order_id":"ORDER-1","total_amount":150000,"description":"Two shirts","payment_method":6}`, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeResult(t, rr)
	assert.True(t, res.Success)
	require.NotNil(t, res.Code)
	assert.Equal(t, 0, *res.Code)
	assert.Equal(t, map[string]any{"payment_url": "https://pay"}, res.Data)

	assert.Equal(t, "ORDER-1", got.MrcOrderID)
	assert.Equal(t, int64(150000), got.TotalAmount)
	require.NotNil(t, got.PaymentMethod)
	assert.Equal(t, 6, *got.PaymentMethod)
}

func TestOrderHandler_CreateOrderBadInput(t *testing.T) {
	called := false
	h := NewOrderHandler(&mockMasterSubOrders{
		createOrderFunc: func(ctx context.Context, req mastersub.OrderRequest) (*baokim.Response, error) {
			called = true
			return nil, nil
		},
	})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "invalid json", body: `{"mrc_order_id":`, message: "Invalid request format"},
		{name: "missing amount", body: `{"mrc_order_id":"O1","description":"d"}`, message: "Validation error"},
		{name: "bad payment method", body: `{"mrc_order_id":"O1","total_amount":1,"description":"d","payment_method":3}`, message: "Validation error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.CreateOrder(rr, newRequest(http.MethodPost, "/v1/orders", tt.body, nil))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			res := decodeResponse(t, rr)
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Message)
		})
	}
	assert.False(t, called)
}

func TestOrderHandler_GatewayRejectionIsOK(t *testing.T) {
	h := NewOrderHandler(&mockMasterSubOrders{
		createOrderFunc: func(ctx context.Context, req mastersub.OrderRequest) (*baokim.Response, error) {
			return gatewayResponse(707, "Duplicate order", nil), nil
		},
	})

	rr := httptest.NewRecorder()
	h.CreateOrder(rr, newRequest(http.MethodPost, "/v1/orders",
		`{"mrc_order_id":"ORDER-1","total_amount":1000,"description":"d"}`, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeResult(t, rr)
	assert.False(t, res.Success)
	assert.Equal(t, 707, *res.Code)
	assert.Equal(t, "Duplicate order", res.Message)
}

func TestOrderHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "transport", err: &baokim.Error{Kind: baokim.KindTransport, Message: "timeout"}, expected: http.StatusBadGateway},
		{name: "authentication", err: &baokim.Error{Kind: baokim.KindAuthentication, Message: "denied"}, expected: http.StatusBadGateway},
		{name: "key", err: &baokim.Error{Kind: baokim.KindKey, Message: "no private key"}, expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOrderHandler(&mockMasterSubOrders{
				queryOrderFunc: func(ctx context.Context, mrcOrderID string) (*baokim.Response, error) {
					return nil, tt.err
				},
			})

			rr := httptest.NewRecorder()
			h.GetOrder(rr, newRequest(http.MethodGet, "/v1/orders/O1", "", map[string]string{"mrcOrderID": "O1"}))

			assert.Equal(t, tt.expected, rr.Code)
			res := decodeResponse(t, rr)
			assert.Equal(t, "Failed to query order", res.Message)
			assert.Equal(t, tt.err.Error(), res.Error)
		})
	}
}

func TestOrderHandler_GetOrder(t *testing.T) {
	var gotID string
	h := NewOrderHandler(&mockMasterSubOrders{
		queryOrderFunc: func(ctx context.Context, mrcOrderID string) (*baokim.Response, error) {
			gotID = mrcOrderID
			return gatewayResponse(0, "Success", nil), nil
		},
	})

	rr := httptest.NewRecorder()
	h.GetOrder(rr, newRequest(http.MethodGet, "/v1/orders/ORDER-9", "", map[string]string{"mrcOrderID": "ORDER-9"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ORDER-9", gotID)

	rr = httptest.NewRecorder()
	h.GetOrder(rr, newRequest(http.MethodGet, "/v1/orders/", "", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_RefundOrder(t *testing.T) {
	var (
		gotAmount *int64
		gotDesc   string
		calls     int
	)
	h := NewOrderHandler(&mockMasterSubOrders{
		refundOrderFunc: func(ctx context.Context, mrcOrderID string, amount *int64, description string) (*baokim.Response, error) {
			calls++
			gotAmount = amount
			gotDesc = description
			return gatewayResponse(0, "Success", nil), nil
		},
	})
	params := map[string]string{"mrcOrderID": "O1"}

	rr := httptest.NewRecorder()
	h.RefundOrder(rr, newRequest(http.MethodPost, "/v1/orders/O1/refund", `{"amount":5000,"description":"damaged"}`, params))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotAmount)
	assert.Equal(t, int64(5000), *gotAmount)
	assert.Equal(t, "damaged", gotDesc)

	rr = httptest.NewRecorder()
	h.RefundOrder(rr, newRequest(http.MethodPost, "/v1/orders/O1/refund", "", params))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, gotAmount)

	rr = httptest.NewRecorder()
	h.RefundOrder(rr, newRequest(http.MethodPost, "/v1/orders/O1/refund", `{"amount":-1}`, params))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 2, calls)
}

func TestOrderHandler_CancelAutoDebit(t *testing.T) {
	var gotToken, gotSuccess string
	h := NewOrderHandler(&mockMasterSubOrders{
		cancelAutoDebitFunc: func(ctx context.Context, token, urlSuccess, urlFail string) (*baokim.Response, error) {
			gotToken, gotSuccess = token, urlSuccess
			return gatewayResponse(0, "Success", nil), nil
		},
	})

	rr := httptest.NewRecorder()
	h.CancelAutoDebit(rr, newRequest(http.MethodPost, "/v1/auto-debit/cancel",
		`{"token":"tok-1","url_success":"https://shop.vn/ok"}`, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tok-1", gotToken)
	assert.Equal(t, "https://shop.vn/ok", gotSuccess)

	rr = httptest.NewRecorder()
	h.CancelAutoDebit(rr, newRequest(http.MethodPost, "/v1/auto-debit/cancel", `{}`, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeResponse(t, rr).Error, "Missing required field: token")
}
