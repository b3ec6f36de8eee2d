package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/baokim/mastersub"
	"github.com/mstgnz/gobaokim/infra/response"
)

// MasterSubOrders is implemented by *mastersub.Orders.
type MasterSubOrders interface {
	CreateOrder(ctx context.Context, req mastersub.OrderRequest) (*baokim.Response, error)
	QueryOrder(ctx context.Context, mrcOrderID string) (*baokim.Response, error)
	RefundOrder(ctx context.Context, mrcOrderID string, amount *int64, description string) (*baokim.Response, error)
	CancelAutoDebit(ctx context.Context, token, urlSuccess, urlFail string) (*baokim.Response, error)
}

// OrderHandler serves the master/sub order endpoints.
type OrderHandler struct {
	orders MasterSubOrders
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders MasterSubOrders) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RefundInput is the body of a master/sub refund.
type RefundInput struct {
	Amount      *int64 `json:"amount" validate:"omitempty,gte=0"`
	Description string `json:"description" validate:"max=255"`
}

// CancelAutoDebitInput is the body of an auto-debit cancellation.
type CancelAutoDebitInput struct {
	Token      string `json:"token" validate:"required"`
	URLSuccess string `json:"url_success" validate:"omitempty,url"`
	URLFail    string `json:"url_fail" validate:"omitempty,url"`
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req mastersub.OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.orders.CreateOrder(ctx, req)
	writeGateway(w, resp, err, "Failed to create order")
}

// GetOrder handles GET /v1/orders/{mrcOrderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
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

// RefundOrder handles POST /v1/orders/{mrcOrderID}/refund. An empty body
// refunds the full amount.
func (h *OrderHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	mrcOrderID := chi.URLParam(r, "mrcOrderID")
	if mrcOrderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	var in RefundInput
	if !decodeOptionalJSON(w, r, &in) {
		return
	}

	resp, err := h.orders.RefundOrder(ctx, mrcOrderID, in.Amount, in.Description)
	writeGateway(w, resp, err, "Failed to refund order")
}

// CancelAutoDebit handles POST /v1/auto-debit/cancel
func (h *OrderHandler) CancelAutoDebit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var in CancelAutoDebitInput
	if !decodeJSON(w, r, &in) {
		return
	}

	resp, err := h.orders.CancelAutoDebit(ctx, in.Token, in.URLSuccess, in.URLFail)
	writeGateway(w, resp, err, "Failed to cancel auto debit")
}
