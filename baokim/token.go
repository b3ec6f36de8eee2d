package baokim

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	TokenEndpoint = "/b2b/auth-service/api/oauth/get-token"

	// TokenSafetyMargin is subtracted from the expiry when judging validity.
	TokenSafetyMargin = 60 * time.Second
	DefaultTokenTTL   = 3600 * time.Second
	// MaxTokenTTL caps expires_in.
	MaxTokenTTL       = 30 * 24 * time.Hour
)

// GatewayLocation is the zone used for request_time and zone-less timestamps.
var GatewayLocation = time.FixedZone("ICT", 7*60*60)

var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
}

// AuthMode selects which merchant code identifies the client at the token endpoint.
type AuthMode string

const (
	AuthModeMasterSub AuthMode = "master_sub"
	AuthModeDirect    AuthMode = "direct"
)

// Credentials identify the merchant to the gateway.
type Credentials struct {
	Mode               AuthMode
	MerchantCode       string
	MasterMerchantCode string
	SubMerchantCode    string
	ClientID           string
	ClientSecret       string
}

// TokenMerchantCode is the merchant_code sent when requesting a token.
func (c Credentials) TokenMerchantCode() string {
	if c.Mode == AuthModeDirect || c.MasterMerchantCode == "" {
		return c.MerchantCode
	}
	return c.MasterMerchantCode
}

// Validate checks that a token can be requested with these credentials.
func (c Credentials) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return NewConfigError("client_id and client_secret are required", nil)
	}
	if c.TokenMerchantCode() == "" {
		return NewConfigError("merchant code is required", nil)
	}
	return nil
}

// TokenInfo is a snapshot of the token manager state.
type TokenInfo struct {
	AccessToken      string    `json:"-"`
	HasToken         bool      `json:"has_token"`
	ExpiresAt        time.Time `json:"expires_at,omitempty"`
	IsValid          bool      `json:"is_valid"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

type tokenRequest struct {
	MerchantCode string `json:"merchant_code"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

// WithLocation sets the zone for expired_at values that carry none.
func WithLocation(loc *time.Location) TokenOption {
	return func(m *TokenManager) { m.location = loc }
}

// WithTokenObservers registers observers for token fetches.
func WithTokenObservers(observers ...CallObserver) TokenOption {
	return func(m *TokenManager) { m.observers = append(m.observers, observers...) }
}

// TokenManager caches the OAuth2 bearer token. The mutex is held across
// check-then-refresh so concurrent callers share a single fetch.
type TokenManager struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	transport Transport
	signer    RequestSigner
	creds     Credentials
	now       func() time.Time
	location  *time.Location
	observers []CallObserver
}

// NewTokenManager creates a manager in the NoToken state.
func NewTokenManager(transport Transport, signer RequestSigner, creds Credentials, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		transport: transport,
		signer:    signer,
		creds:     creds,
		now:       time.Now,
		location:  GatewayLocation,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetToken returns the cached token when valid, otherwise fetches a new one.
func (m *TokenManager) GetToken(ctx context.Context, forceRefresh bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !forceRefresh && m.validLocked() {
		return m.token, nil
	}
	return m.refreshLocked(ctx)
}

// AuthorizationHeader returns "Bearer <token>".
func (m *TokenManager) AuthorizationHeader(ctx context.Context) (string, error) {
	token, err := m.GetToken(ctx, false)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// IsValid reports whether a token is held and not within the safety margin of expiry.
func (m *TokenManager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked()
}

// Clear drops the cached token.
func (m *TokenManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiresAt = time.Time{}
}

// Info returns the current state.
func (m *TokenManager) Info() TokenInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := TokenInfo{
		AccessToken: m.token,
		HasToken:    m.token != "",
		ExpiresAt:   m.expiresAt,
		IsValid:     m.validLocked(),
	}
	if info.HasToken {
		if remaining := m.expiresAt.Sub(m.now()); remaining > 0 {
			info.RemainingSeconds = int64(remaining / time.Second)
		}
	}
	return info
}

func (m *TokenManager) validLocked() bool {
	if m.token == "" {
		return false
	}
	return m.now().Before(m.expiresAt.Add(-TokenSafetyMargin))
}

func (m *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	m.token = ""
	m.expiresAt = time.Time{}

	if err := m.creds.Validate(); err != nil {
		return "", err
	}

	body, err := Canonicalize(tokenRequest{
		MerchantCode: m.creds.TokenMerchantCode(),
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
	})
	if err != nil {
		return "", err
	}
	signature, err := m.signer.Sign(body)
	if err != nil {
		return "", err
	}

	start := m.now()
	httpResp, postErr := m.transport.Post(ctx, TokenEndpoint, body, map[string]string{
		"Signature": signature,
	})

	rec := CallRecord{
		Endpoint:    TokenEndpoint,
		RequestBody: string(body),
		Duration:    m.now().Sub(start),
		Err:         postErr,
	}
	if httpResp != nil {
		rec.StatusCode = httpResp.StatusCode
		rec.ResponseBody = string(httpResp.Body)
	}

	token, expiresAt, err := m.parseTokenResponse(httpResp, postErr, start)
	if err != nil {
		var authErr *Error
		if errors.As(err, &authErr) {
			rec.Code = authErr.Code
		}
		rec.Err = err
		notifyCall(ctx, m.observers, rec)
		return "", err
	}

	rec.Success = true
	rec.Code = intPtr(CodeSuccess)
	notifyCall(ctx, m.observers, rec)

	m.token = token
	m.expiresAt = expiresAt
	return token, nil
}

func (m *TokenManager) parseTokenResponse(httpResp *HTTPResponse, postErr error, now time.Time) (string, time.Time, error) {
	var resp *Response
	if httpResp != nil && len(httpResp.Body) > 0 {
		resp, _ = NormalizeResponse(httpResp.Body, TokenSuccessCodes)
	}

	if postErr != nil {
		authErr := &Error{Kind: KindAuthentication, Message: "token request failed", Cause: postErr}
		if resp != nil {
			authErr.Code = resp.Code
			if resp.Message != "" {
				authErr.Message = resp.Message
			}
		}
		return "", time.Time{}, authErr
	}
	if resp == nil {
		return "", time.Time{}, &Error{Kind: KindAuthentication, Message: "invalid token response",
			Cause: newError(KindTransport, "invalid JSON response", nil)}
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return "", time.Time{}, &Error{Kind: KindAuthentication, Code: resp.Code, Message: msg}
	}

	data := resp.DataMap()
	token, _ := data["access_token"].(string)
	if token == "" {
		return "", time.Time{}, &Error{Kind: KindAuthentication, Code: resp.Code, Message: "access_token missing from token response"}
	}
	return token, m.expiryFrom(data, now), nil
}

// expiryFrom applies expired_at, then expires_in, then the default TTL.
func (m *TokenManager) expiryFrom(data map[string]any, now time.Time) time.Time {
	if t, ok := m.parseExpiredAt(data["expired_at"]); ok {
		return t
	}
	if secs, ok := parseSeconds(data["expires_in"]); ok {
		if secs > int64(MaxTokenTTL/time.Second) {
			return now.Add(MaxTokenTTL)
		}
		return now.Add(time.Duration(secs) * time.Second)
	}
	return now.Add(DefaultTokenTTL)
}

func (m *TokenManager) parseExpiredAt(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return time.Time{}, false
		}
		for _, layout := range expiryLayouts {
			if t, err := time.ParseInLocation(layout, val, m.location); err == nil {
				return t, true
			}
		}
		if unix, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Unix(unix, 0), true
		}
	case json.Number:
		if unix, err := val.Int64(); err == nil {
			return time.Unix(unix, 0), true
		}
	}
	return time.Time{}, false
}

func parseSeconds(v any) (int64, bool) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
		if f, err := val.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
