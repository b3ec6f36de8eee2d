// Package mastersub builds master/sub merchant order requests: the marketplace
// integration where a master merchant acts for its sub merchants.
package mastersub

import (
	"context"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/logger"
)

const (
	EndpointCreateOrder     = "/b2b/core/api/ext/mm/order/send"
	EndpointQueryOrder      = "/b2b/core/api/ext/mm/order/get-order"
	EndpointRefundOrder     = "/b2b/core/api/ext/mm/refund/send"
	EndpointCancelAutoDebit = "/b2b/core/api/ext/mm/autodebit/cancel"
)

// Payment methods accepted by CreateOrder.
const (
	PaymentMethodVA        = 1
	PaymentMethodVNPayQR   = 6
	PaymentMethodAutoDebit = 22
)

// Options carry the merchant identity and redirect defaults.
type Options struct {
	// MerchantCode prefixes request ids. Defaults to MasterMerchantCode.
	MerchantCode       string
	MasterMerchantCode string
	SubMerchantCode    string
	URLSuccess         string
	URLFail            string
}

// Orders calls the master/sub order endpoints.
type Orders struct {
	client *baokim.Client
	opts   Options
}

// New returns an Orders bound to client.
func New(client *baokim.Client, opts Options) *Orders {
	if opts.MerchantCode == "" {
		opts.MerchantCode = opts.MasterMerchantCode
	}
	return &Orders{client: client, opts: opts}
}

// OrderRequest is the caller input for CreateOrder.
type OrderRequest struct {
	MrcOrderID    string               `json:"mrc_order_id" validate:"required"`
	TotalAmount   int64                `json:"total_amount" validate:"required,gt=0"`
	Description   string               `json:"description" validate:"required,max=120"`
	URLSuccess    string               `json:"url_success,omitempty"`
	URLFail       string               `json:"url_fail,omitempty"`
	PaymentMethod *int                 `json:"payment_method,omitempty" validate:"omitempty,oneof=1 6 22"`
	Items         []baokim.Item        `json:"items,omitempty" validate:"omitempty,dive"`
	CustomerInfo  *baokim.CustomerInfo `json:"customer_info,omitempty"`
	PaymentInfo   map[string]any       `json:"payment_info,omitempty"`
	ServiceCode   string               `json:"service_code,omitempty"`
	SaveToken     *int                 `json:"save_token,omitempty"`
	StoreCode     string               `json:"store_code,omitempty"`
	BranchCode    string               `json:"branch_code,omitempty"`
	StaffCode     string               `json:"staff_code,omitempty"`
}

type identity struct {
	baokim.RequestMeta
	MasterMerchantCode string `json:"master_merchant_code"`
	SubMerchantCode    string `json:"sub_merchant_code"`
}

type createOrderBody struct {
	identity
	MrcOrderID    string               `json:"mrc_order_id"`
	TotalAmount   int64                `json:"total_amount"`
	Description   string               `json:"description"`
	URLSuccess    string               `json:"url_success"`
	URLFail       string               `json:"url_fail"`
	PaymentMethod *int                 `json:"payment_method,omitempty"`
	Items         []baokim.Item        `json:"items,omitempty"`
	CustomerInfo  *baokim.CustomerInfo `json:"customer_info,omitempty"`
	PaymentInfo   map[string]any       `json:"payment_info,omitempty"`
	ServiceCode   string               `json:"service_code,omitempty"`
	SaveToken     *int                 `json:"save_token,omitempty"`
	StoreCode     string               `json:"store_code,omitempty"`
	BranchCode    string               `json:"branch_code,omitempty"`
	StaffCode     string               `json:"staff_code,omitempty"`
}

type orderRefBody struct {
	identity
	MrcOrderID string `json:"mrc_order_id"`
}

type refundBody struct {
	identity
	MrcOrderID  string `json:"mrc_order_id"`
	Amount      *int64 `json:"amount,omitempty"`
	Description string `json:"description,omitempty"`
}

type cancelAutoDebitBody struct {
	identity
	Token      string `json:"token"`
	URLSuccess string `json:"url_success"`
	URLFail    string `json:"url_fail"`
}

func (o *Orders) identity() identity {
	return identity{
		RequestMeta:        o.client.NewRequestMeta(o.opts.MerchantCode, ""),
		MasterMerchantCode: o.opts.MasterMerchantCode,
		SubMerchantCode:    o.opts.SubMerchantCode,
	}
}

// CreateOrder sends a new order. Redirect URLs default to Options.
func (o *Orders) CreateOrder(ctx context.Context, req OrderRequest) (*baokim.Response, error) {
	if err := baokim.ValidateRequest(req); err != nil {
		return nil, err
	}

	body := createOrderBody{
		identity:      o.identity(),
		MrcOrderID:    req.MrcOrderID,
		TotalAmount:   req.TotalAmount,
		Description:   req.Description,
		URLSuccess:    firstNonEmpty(req.URLSuccess, o.opts.URLSuccess),
		URLFail:       firstNonEmpty(req.URLFail, o.opts.URLFail),
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
		CustomerInfo:  req.CustomerInfo,
		PaymentInfo:   req.PaymentInfo,
		ServiceCode:   req.ServiceCode,
		SaveToken:     req.SaveToken,
		StoreCode:     req.StoreCode,
		BranchCode:    req.BranchCode,
		StaffCode:     req.StaffCode,
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

// RefundOrder refunds amount, or the full order when amount is nil.
func (o *Orders) RefundOrder(ctx context.Context, mrcOrderID string, amount *int64, description string) (*baokim.Response, error) {
	if mrcOrderID == "" {
		return nil, baokim.NewValidationError("Missing required field: mrc_order_id", nil)
	}
	if amount != nil && *amount < 0 {
		return nil, baokim.NewValidationError("amount must be >= 0", nil)
	}
	body := refundBody{
		identity:    o.identity(),
		MrcOrderID:  mrcOrderID,
		Amount:      amount,
		Description: description,
	}
	return o.call(ctx, "refund_order", EndpointRefundOrder, body, mrcOrderID)
}

// CancelAutoDebit revokes a saved auto-debit token. Empty URLs default to Options.
func (o *Orders) CancelAutoDebit(ctx context.Context, token, urlSuccess, urlFail string) (*baokim.Response, error) {
	if token == "" {
		return nil, baokim.NewValidationError("Missing required field: token", nil)
	}
	body := cancelAutoDebitBody{
		identity:   o.identity(),
		Token:      token,
		URLSuccess: firstNonEmpty(urlSuccess, o.opts.URLSuccess),
		URLFail:    firstNonEmpty(urlFail, o.opts.URLFail),
	}
	return o.call(ctx, "cancel_auto_debit", EndpointCancelAutoDebit, body, "")
}

func (o *Orders) call(ctx context.Context, operation, endpoint string, body any, mrcOrderID string) (*baokim.Response, error) {
	resp, err := o.client.Call(ctx, endpoint, body, baokim.MasterSubSuccessCodes)
	logCtx := logger.LogContext{
		Operation: operation,
		Variant:   "mastersub",
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
