// Package direct calls the order endpoints of a merchant connected to the
// gateway on its own, identified by merchant_code.
package direct

import (
	"context"
	"strconv"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/logger"
)

const (
	EndpointCreateOrder = "/b2b/core/api/ext/order/send"
	EndpointQueryOrder  = "/b2b/core/api/ext/order/get-order"
	EndpointRefundOrder = "/b2b/core/api/ext/refund/send"
	EndpointCancelOrder = "/b2b/core/api/ext/order/cancel"

	requestTag = "DIRECT"
)

const (
	PaymentMethodVA          = 1
	PaymentMethodBNPL        = 2
	PaymentMethodCreditCard  = 3
	PaymentMethodInstallment = 4
	PaymentMethodATM         = 5
	PaymentMethodVNPayQR     = 6
)

// Options carry the merchant code and redirect defaults.
type Options struct {
	MerchantCode string
	URLSuccess   string
	URLFail      string
}

// Orders calls the direct order endpoints.
type Orders struct {
	client *baokim.Client
	opts   Options
}

func New(client *baokim.Client, opts Options) *Orders {
	return &Orders{client: client, opts: opts}
}

// OrderRequest is the caller input for CreateOrder. Unlike master/sub orders
// the gateway requires customer_info here.
type OrderRequest struct {
	MrcOrderID    string               `json:"mrc_order_id" validate:"required,max=50"`
	TotalAmount   int64                `json:"total_amount" validate:"required,gt=0"`
	Description   string               `json:"description" validate:"required,max=255"`
	URLSuccess    string               `json:"url_success,omitempty"`
	URLFail       string               `json:"url_fail,omitempty"`
	PaymentMethod *int                 `json:"payment_method,omitempty" validate:"omitempty,oneof=1 2 3 4 5 6"`
	Items         []baokim.Item        `json:"items,omitempty" validate:"omitempty,dive"`
	CustomerInfo  *baokim.CustomerInfo `json:"customer_info" validate:"required"`
	StoreCode     string               `json:"store_code,omitempty"`
	BranchCode    string               `json:"branch_code,omitempty"`
	StaffCode     string               `json:"staff_code,omitempty"`
}

// RefundRequest is the caller input for RefundOrder. AccountNo and BankNo
// are needed only when the gateway cannot refund to the original source.
type RefundRequest struct {
	MrcOrderID  string `json:"mrc_order_id" validate:"required"`
	Description string `json:"description" validate:"required"`
	Amount      *int64 `json:"amount,omitempty" validate:"omitempty,gte=0"`
	AccountNo   string `json:"account_no,omitempty"`
	BankNo      string `json:"bank_no,omitempty"`
}

type identity struct {
	baokim.RequestMeta
	MerchantCode string `json:"merchant_code"`
}

type createOrderBody struct {
	identity
	MrcOrderID    string               `json:"mrc_order_id"`
	Description   string               `json:"description"`
	TotalAmount   int64                `json:"total_amount"`
	URLSuccess    string               `json:"url_success"`
	URLFail       string               `json:"url_fail"`
	StoreCode     string               `json:"store_code,omitempty"`
	BranchCode    string               `json:"branch_code,omitempty"`
	StaffCode     string               `json:"staff_code,omitempty"`
	Items         []baokim.Item        `json:"items,omitempty"`
	CustomerInfo  *baokim.CustomerInfo `json:"customer_info"`
	PaymentMethod string               `json:"payment_method,omitempty"`
}

type orderRefBody struct {
	identity
	MrcOrderID string `json:"mrc_order_id"`
}

type refundBody struct {
	identity
	MrcOrderID  string `json:"mrc_order_id"`
	Description string `json:"description"`
	Amount      *int64 `json:"amount,omitempty"`
	AccountNo   string `json:"account_no,omitempty"`
	BankNo      string `json:"bank_no,omitempty"`
}

func (o *Orders) identity() identity {
	return identity{
		RequestMeta:  o.client.NewRequestMeta(o.opts.MerchantCode, requestTag),
		MerchantCode: o.opts.MerchantCode,
	}
}

// CreateOrder sends a new order. payment_method travels as a string.
func (o *Orders) CreateOrder(ctx context.Context, req OrderRequest) (*baokim.Response, error) {
	if err := baokim.ValidateRequest(req); err != nil {
		return nil, err
	}

	body := createOrderBody{
		identity:     o.identity(),
		MrcOrderID:   req.MrcOrderID,
		Description:  req.Description,
		TotalAmount:  req.TotalAmount,
		URLSuccess:   firstNonEmpty(req.URLSuccess, o.opts.URLSuccess),
		URLFail:      firstNonEmpty(req.URLFail, o.opts.URLFail),
		StoreCode:    req.StoreCode,
		BranchCode:   req.BranchCode,
		StaffCode:    req.StaffCode,
		Items:        req.Items,
		CustomerInfo: req.CustomerInfo,
	}
	if req.PaymentMethod != nil {
		body.PaymentMethod = strconv.Itoa(*req.PaymentMethod)
	}
	return o.call(ctx, "create_order", EndpointCreateOrder, body, req.MrcOrderID)
}

// QueryOrder fetches the state of an order.
func (o *Orders) QueryOrder(ctx context.Context, mrcOrderID string) (*baokim.Response, error) {
	if mrcOrderID == "" {
		return nil, baokim.NewValidationError("Missing required field: mrc_order_id", nil)
	}
	body := orderRefBody{identity: o.identity(), MrcOrderID: mrcOrderID}
	return o.call(ctx, "query_order", EndpointQueryOrder, body, mrcOrderID)
}

// RefundOrder refunds req.Amount, or the whole order when it is nil.
func (o *Orders) RefundOrder(ctx context.Context, req RefundRequest) (*baokim.Response, error) {
	if err := baokim.ValidateRequest(req); err != nil {
		return nil, err
	}
	body := refundBody{
		identity:    o.identity(),
		MrcOrderID:  req.MrcOrderID,
		Description: req.Description,
		Amount:      req.Amount,
		AccountNo:   req.AccountNo,
		BankNo:      req.BankNo,
	}
	return o.call(ctx, "refund_order", EndpointRefundOrder, body, req.MrcOrderID)
}

// CancelOrder cancels an unpaid order.
func (o *Orders) CancelOrder(ctx context.Context, mrcOrderID string) (*baokim.Response, error) {
	if mrcOrderID == "" {
		return nil, baokim.NewValidationError("Missing required field: mrc_order_id", nil)
	}
	body := orderRefBody{identity: o.identity(), MrcOrderID: mrcOrderID}
	return o.call(ctx, "cancel_order", EndpointCancelOrder, body, mrcOrderID)
}

func (o *Orders) call(ctx context.Context, operation, endpoint string, body any, mrcOrderID string) (*baokim.Response, error) {
	resp, err := o.client.Call(ctx, endpoint, body, baokim.DirectSuccessCodes)
	logCtx := logger.LogContext{
		Operation: operation,
		Variant:   "direct",
		Fields:    map[string]any{"mrc_order_id": mrcOrderID},
	}
	if err != nil {
		logger.Error("Gateway request failed", err, logCtx)
		return nil, err
	}
	if !resp.Success {
		logCtx.Fields["code"] = resp.CodeValue()
		logger.Warn("Gateway rejected request: "+resp.Message, logCtx)
	}
	return resp, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
