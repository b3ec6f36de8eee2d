package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/baokim/hosttohost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ VirtualAccounts = (*hosttohost.VirtualAccounts)(nil)

type mockVirtualAccounts struct {
	createVAFunc         func(ctx context.Context, req hosttohost.CreateVARequest) (*baokim.Response, error)
	updateVAFunc         func(ctx context.Context, accNo string, req hosttohost.UpdateVARequest) (*baokim.Response, error)
	queryTransactionFunc func(ctx context.Context, q hosttohost.TransactionQuery) (*baokim.Response, error)
}

func (m *mockVirtualAccounts) CreateVA(ctx context.Context, req hosttohost.CreateVARequest) (*baokim.Response, error) {
	if m.createVAFunc != nil {
		return m.createVAFunc(ctx, req)
	}
	return gatewayResponse(0, "Success", nil), nil
}

func (m *mockVirtualAccounts) UpdateVA(ctx context.Context, accNo string, req hosttohost.UpdateVARequest) (*baokim.Response, error) {
	if m.updateVAFunc != nil {
		return m.updateVAFunc(ctx, accNo, req)
	}
	return gatewayResponse(0, "Success", nil), nil
}

func (m *mockVirtualAccounts) QueryTransaction(ctx context.Context, q hosttohost.TransactionQuery) (*baokim.Response, error) {
	if m.queryTransactionFunc != nil {
		return m.queryTransactionFunc(ctx, q)
	}
	return gatewayResponse(0, "Success", nil), nil
}

func TestVAHandler_CreateVA(t *testing.T) {
	var got hosttohost.CreateVARequest
	h := NewVAHandler(&mockVirtualAccounts{
		createVAFunc: func(ctx context.Context, req hosttohost.CreateVARequest) (*baokim.Response, error) {
			got = req
			return gatewayResponse(0, "Success", map[string]any{"acc_no": "9704001"}), nil
		},
	})

	rr := httptest.NewRecorder()
	h.CreateVA(rr, newRequest(http.MethodPost, "/v1/va",
		`{"acc_name":"NGUYEN VAN A","acc_type":1,"mrc_order_id":"VA-1","collect_amount_min":50000,"collect_amount_max":50000}`, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"acc_no": "9704001"}, decodeResult(t, rr).Data)
	assert.Equal(t, hosttohost.AccTypeDynamic, got.AccType)
	require.NotNil(t, got.CollectAmountMin)
	assert.Equal(t, int64(50000), *got.CollectAmountMin)
}

func TestVAHandler_CreateStaticVAWithoutExpireDate(t *testing.T) {
	called := false
	h := NewVAHandler(&mockVirtualAccounts{
		createVAFunc: func(ctx context.Context, req hosttohost.CreateVARequest) (*baokim.Response, error) {
			called = true
			return nil, nil
		},
	})

	rr := httptest.NewRecorder()
	h.CreateVA(rr, newRequest(http.MethodPost, "/v1/va", `{"acc_name":"A","acc_type":2,"mrc_order_id":"VA-2"}`, nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, called)
}

func TestVAHandler_UpdateVA(t *testing.T) {
	var gotAcc string
	var got hosttohost.UpdateVARequest
	h := NewVAHandler(&mockVirtualAccounts{
		updateVAFunc: func(ctx context.Context, accNo string, req hosttohost.UpdateVARequest) (*baokim.Response, error) {
			gotAcc, got = accNo, req
			return gatewayResponse(0, "Success", nil), nil
		},
	})
	params := map[string]string{"accNo": "9704001"}

	rr := httptest.NewRecorder()
	h.UpdateVA(rr, newRequest(http.MethodPut, "/v1/va/9704001", `{"status":0}`, params))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "9704001", gotAcc)
	require.NotNil(t, got.Status)
	assert.Equal(t, 0, *got.Status)

	rr = httptest.NewRecorder()
	h.UpdateVA(rr, newRequest(http.MethodPut, "/v1/va/9704001", `{"status":5}`, params))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.UpdateVA(rr, newRequest(http.MethodPut, "/v1/va/", `{}`, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVAHandler_QueryTransactions(t *testing.T) {
	var got hosttohost.TransactionQuery
	h := NewVAHandler(&mockVirtualAccounts{
		queryTransactionFunc: func(ctx context.Context, q hosttohost.TransactionQuery) (*baokim.Response, error) {
			got = q
			return gatewayResponse(0, "Success", []any{}), nil
		},
	})

	rr := httptest.NewRecorder()
	h.QueryTransactions(rr, newRequest(http.MethodPost, "/v1/va/transactions",
		`{"acc_no":"9704001","start_date":"2025-01-01","end_date":"2025-01-31"}`, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2025-01-31", got.EndDate)

	rr = httptest.NewRecorder()
	h.QueryTransactions(rr, newRequest(http.MethodPost, "/v1/va/transactions", "", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.QueryTransactions(rr, newRequest(http.MethodPost, "/v1/va/transactions", `{"start_date":"01/01/2025"}`, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
