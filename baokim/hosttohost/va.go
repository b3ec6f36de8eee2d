// Package hosttohost manages virtual accounts (VA) over the host-to-host
// bank-transfer API. Customers pay by transferring to the account number.
package hosttohost

import (
	"context"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/mstgnz/gobaokim/infra/logger"
)

const (
	EndpointCreateVA         = "/b2b/core/api/ext/mm/bank-transfer/create"
	EndpointUpdateVA         = "/b2b/core/api/ext/mm/bank-transfer/update"
	EndpointQueryTransaction = "/b2b/core/api/ext/mm/bank-transfer/detail"

	requestTag = "VA"
)

// Account types.
const (
	AccTypeDynamic = 1 // one account per order
	AccTypeStatic  = 2 // reusable, needs an expire date
)

// ExpireDateLayout is the layout expected in expire_date.
const ExpireDateLayout = "2006-01-02 15:04:05"

// Options carry the merchant identity.
type Options struct {
	// MerchantCode prefixes request ids. Defaults to MasterMerchantCode.
	MerchantCode       string
	MasterMerchantCode string
	SubMerchantCode    string
}

// VirtualAccounts calls the bank-transfer endpoints.
type VirtualAccounts struct {
	client *baokim.Client
	opts   Options
}

func New(client *baokim.Client, opts Options) *VirtualAccounts {
	if opts.MerchantCode == "" {
		opts.MerchantCode = opts.MasterMerchantCode
	}
	return &VirtualAccounts{client: client, opts: opts}
}

// CreateVARequest is the caller input for CreateVA.
type CreateVARequest struct {
	AccName          string `json:"acc_name" validate:"required"`
	AccType          int    `json:"acc_type" validate:"required,oneof=1 2"`
	MrcOrderID       string `json:"mrc_order_id" validate:"required"`
	CollectAmountMin *int64 `json:"collect_amount_min,omitempty" validate:"omitempty,gte=0"`
	CollectAmountMax *int64 `json:"collect_amount_max,omitempty" validate:"omitempty,gte=0"`
	ExpireDate       string `json:"expire_date,omitempty" validate:"required_if=AccType 2"`
	Description      string `json:"description,omitempty"`
}

// UpdateVARequest holds the fields to change. Unset fields are left alone.
type UpdateVARequest struct {
	AccName          string `json:"acc_name,omitempty"`
	CollectAmountMin *int64 `json:"collect_amount_min,omitempty"`
	CollectAmountMax *int64 `json:"collect_amount_max,omitempty"`
	ExpireDate       string `json:"expire_date,omitempty"`
	Status           *int   `json:"status,omitempty" validate:"omitempty,oneof=0 1"`
}

// TransactionQuery filters QueryTransaction. Dates are YYYY-MM-DD.
type TransactionQuery struct {
	AccNo     string `json:"acc_no,omitempty"`
	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type identity struct {
	baokim.RequestMeta
	MasterMerchantCode string `json:"master_merchant_code"`
	SubMerchantCode    string `json:"sub_merchant_code"`
}

type createVABody struct {
	identity
	AccName          string `json:"acc_name"`
	AccType          int    `json:"acc_type"`
	MrcOrderID       string `json:"mrc_order_id"`
	CollectAmountMin *int64 `json:"collect_amount_min,omitempty"`
	CollectAmountMax *int64 `json:"collect_amount_max,omitempty"`
	ExpireDate       string `json:"expire_date,omitempty"`
	Description      string `json:"description,omitempty"`
}

type updateVABody struct {
	identity
	AccNo            string `json:"acc_no"`
	AccName          string `json:"acc_name,omitempty"`
	CollectAmountMin *int64 `json:"collect_amount_min,omitempty"`
	CollectAmountMax *int64 `json:"collect_amount_max,omitempty"`
	ExpireDate       string `json:"expire_date,omitempty"`
	Status           *int   `json:"status,omitempty"`
}

type queryTransactionBody struct {
	identity
	AccNo     string `json:"acc_no,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

func (v *VirtualAccounts) identity() identity {
	return identity{
		RequestMeta:        v.client.NewRequestMeta(v.opts.MerchantCode, requestTag),
		MasterMerchantCode: v.opts.MasterMerchantCode,
		SubMerchantCode:    v.opts.SubMerchantCode,
	}
}

// CreateVA opens a virtual account. The response data carries acc_no,
// qr_string and qr_path.
func (v *VirtualAccounts) CreateVA(ctx context.Context, req CreateVARequest) (*baokim.Response, error) {
	if req.AccType != 0 && req.AccType != AccTypeDynamic && req.AccType != AccTypeStatic {
		return nil, baokim.NewValidationError("Invalid acc_type. Must be 1 (Dynamic) or 2 (Static)", nil)
	}
	if req.AccType == AccTypeStatic && req.ExpireDate == "" {
		return nil, baokim.NewValidationError("expire_date is required for Static VA (acc_type=2)", nil)
	}
	if err := baokim.ValidateRequest(req); err != nil {
		return nil, err
	}

	body := createVABody{
		identity:         v.identity(),
		AccName:          req.AccName,
		AccType:          req.AccType,
		MrcOrderID:       req.MrcOrderID,
		CollectAmountMin: req.CollectAmountMin,
		CollectAmountMax: req.CollectAmountMax,
		ExpireDate:       req.ExpireDate,
		Description:      req.Description,
	}
	return v.call(ctx, "create_va", EndpointCreateVA, body, req.MrcOrderID)
}

// CreateDynamicVA opens a one-shot account collecting exactly amount.
func (v *VirtualAccounts) CreateDynamicVA(ctx context.Context, accName, mrcOrderID string, amount int64, description string) (*baokim.Response, error) {
	return v.CreateVA(ctx, CreateVARequest{
		AccName:          accName,
		AccType:          AccTypeDynamic,
		MrcOrderID:       mrcOrderID,
		CollectAmountMin: &amount,
		CollectAmountMax: &amount,
		Description:      description,
	})
}

// CreateStaticVA opens a reusable account valid until expireDate.
func (v *VirtualAccounts) CreateStaticVA(ctx context.Context, accName, mrcOrderID, expireDate string, minAmount, maxAmount *int64) (*baokim.Response, error) {
	return v.CreateVA(ctx, CreateVARequest{
		AccName:          accName,
		AccType:          AccTypeStatic,
		MrcOrderID:       mrcOrderID,
		CollectAmountMin: minAmount,
		CollectAmountMax: maxAmount,
		ExpireDate:       expireDate,
	})
}

// UpdateVA changes an existing account.
func (v *VirtualAccounts) UpdateVA(ctx context.Context, accNo string, req UpdateVARequest) (*baokim.Response, error) {
	if accNo == "" {
		return nil, baokim.NewValidationError("Missing required field: acc_no", nil)
	}
	if err := baokim.ValidateRequest(req); err != nil {
		return nil, err
	}

	body := updateVABody{
		identity:         v.identity(),
		AccNo:            accNo,
		AccName:          req.AccName,
		CollectAmountMin: req.CollectAmountMin,
		CollectAmountMax: req.CollectAmountMax,
		ExpireDate:       req.ExpireDate,
		Status:           req.Status,
	}
	return v.call(ctx, "update_va", EndpointUpdateVA, body, "")
}

// QueryTransaction lists transfers matching q. Every filter is optional.
func (v *VirtualAccounts) QueryTransaction(ctx context.Context, q TransactionQuery) (*baokim.Response, error) {
	if err := baokim.ValidateRequest(q); err != nil {
		return nil, err
	}
	body := queryTransactionBody{
		identity:  v.identity(),
		AccNo:     q.AccNo,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	}
	return v.call(ctx, "query_transaction", EndpointQueryTransaction, body, "")
}

func (v *VirtualAccounts) call(ctx context.Context, operation, endpoint string, body any, mrcOrderID string) (*baokim.Response, error) {
	resp, err := v.client.Call(ctx, endpoint, body, baokim.VASuccessCodes)
	logCtx := logger.LogContext{
		Operation: operation,
		Variant:   "va",
		Fields:    map[string]any{},
	}
	if mrcOrderID != "" {
		logCtx.Fields["mrc_order_id"] = mrcOrderID
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
