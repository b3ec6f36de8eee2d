package baokim

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second

	// Base URLs published by the gateway.
	SandboxBaseURL    = "https://devtest.baokim.vn"
	ProductionBaseURL = "https://openapi.baokim.vn"
)

// Transport posts exact bytes to a gateway endpoint.
type Transport interface {
	Post(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*HTTPResponse, error)
}

// HTTPClientConfig configures HTTPTransport.
type HTTPClientConfig struct {
	BaseURL            string
	Timeout            time.Duration
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
	DefaultHeaders     map[string]string
}

// HTTPResponse is the raw gateway reply.
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	config *HTTPClientConfig
	client *http.Client
}

// NewHTTPTransport creates a transport with connect and overall timeouts.
func NewHTTPTransport(config *HTTPClientConfig) *HTTPTransport {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: config.ConnectTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	return &HTTPTransport{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// CreateHTTPClientConfig returns the default transport configuration for baseURL.
func CreateHTTPClientConfig(baseURL string, timeout, connectTimeout time.Duration) *HTTPClientConfig {
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	return &HTTPClientConfig{
		BaseURL:        baseURL,
		Timeout:        timeout,
		ConnectTimeout: connectTimeout,
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "GoBaokim/1.0",
		},
	}
}

// Post sends body verbatim. Network errors, non-2xx statuses and unreadable
// bodies are reported as ErrTransport.
func (t *HTTPTransport) Post(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*HTTPResponse, error) {
	fullURL := joinURL(t.config.BaseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindTransport, "failed to create HTTP request", err)
	}

	for key, value := range t.config.DefaultHeaders {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, newError(KindTransport, "HTTP request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, "failed to read response body", err)
	}

	response := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response, &Error{
			Kind:       KindTransport,
			HTTPStatus: resp.StatusCode,
			Message:    extractErrorMessage(respBody),
		}
	}

	return response, nil
}

const maxErrorMessageRunes = 200

// extractErrorMessage pulls a readable message out of an error body.
func extractErrorMessage(body []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, key := range []string{"message", "error", "msg"} {
			if v, ok := decoded[key].(string); ok && v != "" {
				return v
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if r := []rune(msg); len(r) > maxErrorMessageRunes {
		msg = string(r[:maxErrorMessageRunes])
	}
	if msg == "" {
		return "empty response body"
	}
	return msg
}

func joinURL(base, endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

func (r *HTTPResponse) String() string {
	return fmt.Sprintf("HTTP %d: %s", r.StatusCode, string(r.Body))
}
