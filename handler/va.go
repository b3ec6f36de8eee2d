package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/baokim/hosttohost"
	"github.com/mstgnz/gobaokim/infra/response"
)

// VirtualAccounts is implemented by *hosttohost.VirtualAccounts.
type VirtualAccounts interface {
	CreateVA(ctx context.Context, req hosttohost.CreateVARequest) (*baokim.Response, error)
	UpdateVA(ctx context.Context, accNo string, req hosttohost.UpdateVARequest) (*baokim.Response, error)
	QueryTransaction(ctx context.Context, q hosttohost.TransactionQuery) (*baokim.Response, error)
}

// VAHandler serves the virtual account endpoints.
type VAHandler struct {
	accounts VirtualAccounts
}

// NewVAHandler creates a new virtual account handler
func NewVAHandler(accounts VirtualAccounts) *VAHandler {
	return &VAHandler{accounts: accounts}
}

// CreateVA handles POST /v1/va
func (h *VAHandler) CreateVA(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req hosttohost.CreateVARequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.accounts.CreateVA(ctx, req)
	writeGateway(w, resp, err, "Failed to create virtual account")
}

// UpdateVA handles PUT /v1/va/{accNo}
func (h *VAHandler) UpdateVA(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	accNo := chi.URLParam(r, "accNo")
	if accNo == "" {
		response.Error(w, http.StatusBadRequest, "Missing account number", nil)
		return
	}

	var req hosttohost.UpdateVARequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.accounts.UpdateVA(ctx, accNo, req)
	writeGateway(w, resp, err, "Failed to update virtual account")
}

// QueryTransactions handles POST /v1/va/transactions
func (h *VAHandler) QueryTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var q hosttohost.TransactionQuery
	if !decodeOptionalJSON(w, r, &q) {
		return
	}

	resp, err := h.accounts.QueryTransaction(ctx, q)
	writeGateway(w, resp, err, "Failed to query transactions")
}
