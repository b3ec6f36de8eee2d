package baokim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestTimeLayout is the layout of the request_time body field.
const RequestTimeLayout = "2006-01-02 15:04:05"

// Client runs the signed request pipeline shared by every API family:
// bearer token, canonical body, signature, POST, normalization.
type Client struct {
	transport Transport
	tokens    *TokenManager
	signer    RequestSigner
	now       func() time.Time
	observers []CallObserver
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithCallObservers registers observers for every gateway call.
func WithCallObservers(observers ...CallObserver) ClientOption {
	return func(c *Client) { c.observers = append(c.observers, observers...) }
}

// WithClientClock replaces time.Now for request metadata.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient wires the pipeline.
func NewClient(transport Transport, tokens *TokenManager, signer RequestSigner, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		tokens:    tokens,
		signer:    signer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens exposes the token manager.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// Call signs body and posts it to endpoint. A gateway code outside codes is
// not an error: the envelope is returned with Success false.
func (c *Client) Call(ctx context.Context, endpoint string, body any, codes SuccessCodes) (*Response, error) {
	auth, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := Canonicalize(body)
	if err != nil {
		return nil, err
	}
	signature, err := c.signer.Sign(payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.transport.Post(ctx, endpoint, payload, map[string]string{
		"Authorization": auth,
		"Signature":     signature,
		"Accept":        "application/json",
	})

	rec := CallRecord{
		Endpoint:    endpoint,
		RequestID:   requestIDOf(body),
		RequestBody: string(payload),
		Duration:    time.Since(start),
		Err:         err,
	}
	if httpResp != nil {
		rec.StatusCode = httpResp.StatusCode
		rec.ResponseBody = string(httpResp.Body)
	}
	if err != nil {
		var e *Error
		if errors.As(err, &e) && IsAuthCode(e.HTTPStatus) {
			c.tokens.Clear()
		}
		notifyCall(ctx, c.observers, rec)
		return nil, err
	}

	resp, err := NormalizeResponse(httpResp.Body, codes)
	if err != nil {
		rec.Err = err
		notifyCall(ctx, c.observers, rec)
		return nil, err
	}

	// A rejected token is dropped so the next call fetches a new one.
	if resp.Code != nil && IsAuthCode(*resp.Code) {
		c.tokens.Clear()
	}

	rec.Code = resp.Code
	rec.Success = resp.Success
	notifyCall(ctx, c.observers, rec)
	return resp, nil
}

// RequestMeta is the header block every request body starts with.
type RequestMeta struct {
	RequestID   string `json:"request_id"`
	RequestTime string `json:"request_time"`
}

// requestIdentifier is implemented by bodies embedding RequestMeta.
type requestIdentifier interface {
	requestIdentity() string
}

func (m RequestMeta) requestIdentity() string {
	return m.RequestID
}

func requestIDOf(body any) string {
	if r, ok := body.(requestIdentifier); ok {
		return r.requestIdentity()
	}
	return ""
}

// NewRequestMeta builds request metadata. tag is inserted between the
// merchant code and the timestamp ("VA", "DIRECT") when not empty.
func (c *Client) NewRequestMeta(merchantCode, tag string) RequestMeta {
	return NewRequestMeta(c.now(), merchantCode, tag)
}

// NewRequestMeta builds request metadata for the given instant.
func NewRequestMeta(now time.Time, merchantCode, tag string) RequestMeta {
	local := now.In(GatewayLocation)
	uniq := uuid.New().String()[:13]
	id := fmt.Sprintf("%s_%s_%s", merchantCode, local.Format("20060102150405"), uniq)
	if tag != "" {
		id = fmt.Sprintf("%s_%s_%s_%s", merchantCode, tag, local.Format("20060102150405"), uniq)
	}
	return RequestMeta{
		RequestID:   id,
		RequestTime: local.Format(RequestTimeLayout),
	}
}
