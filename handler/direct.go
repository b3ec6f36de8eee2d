package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/baokim/direct"
	"github.com/mstgnz/gobaokim/infra/response"
)

// DirectOrders is implemented by *direct.Orders.
type DirectOrders interface {
	CreateOrder(ctx context.Context, req direct.OrderRequest) (*baokim.Response, error)
	QueryOrder(ctx context.Context, mrcOrderID string) (*baokim.Response, error)
	RefundOrder(ctx context.Context, req direct.RefundRequest) (*baokim.Response, error)
	CancelOrder(ctx context.Context, mrcOrderID string) (*baokim.Response, error)
}

// DirectHandler serves the direct merchant order endpoints.
type DirectHandler struct {
	orders DirectOrders
}

// NewDirectHandler creates a new direct order handler
func NewDirectHandler(orders DirectOrders) *DirectHandler {
	return &DirectHandler{orders: orders}
}

// DirectRefundInput is the body of a direct refund.
type DirectRefundInput struct {
	Description string `json:"description" validate:"required"`
	Amount      *int64 `json:"amount" validate:"omitempty,gte=0"`
	AccountNo   string `json:"account_no"`
	BankNo      string `json:"bank_no"`
}

// CreateOrder handles POST /v1/direct/orders
func (h *DirectHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req direct.OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.orders.CreateOrder(ctx, req)
	writeGateway(w, resp, err, "Failed to create order")
}

// GetOrder handles GET /v1/direct/orders/{mrcOrderID}
func (h *DirectHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mrcOrderID := chi.URLParam(r, "mrcOrderID")
	if mrcOrderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	resp, err := h.orders.QueryOrder(ctx, mrcOrderID)
	writeGateway(w, resp, err, "Failed to query order")
}

// RefundOrder handles POST /v1/direct/orders/{mrcOrderID}/refund
func (h *DirectHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mrcOrderID := chi.URLParam(r, "mrcOrderID")
	if mrcOrderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	var in DirectRefundInput
	if !decodeJSON(w, r, &in) {
		return
	}

	resp, err := h.orders.RefundOrder(ctx, direct.RefundRequest{
		MrcOrderID:  mrcOrderID,
		Description: in.Description,
		Amount:      in.Amount,
		AccountNo:   in.AccountNo,
		BankNo:      in.BankNo,
	})
	writeGateway(w, resp, err, "Failed to refund order")
}

// CancelOrder handles POST /v1/direct/orders/{mrcOrderID}/cancel
func (h *DirectHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mrcOrderID := chi.URLParam(r, "mrcOrderID")
	if mrcOrderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	resp, err := h.orders.CancelOrder(ctx, mrcOrderID)
	writeGateway(w, resp, err, "Failed to cancel order")
}
