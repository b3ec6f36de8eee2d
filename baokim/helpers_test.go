package baokim

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewSignerFromKeys(key, &key.PublicKey)
}

type postedRequest struct {
	Endpoint string
	Body     []byte
	Headers  map[string]string
}

// fakeTransport answers every POST through respond and records it.
type fakeTransport struct {
	mu       sync.Mutex
	requests []postedRequest
	respond  func(endpoint string, body []byte) (*HTTPResponse, error)
}

func (f *fakeTransport) Post(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*HTTPResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, postedRequest{Endpoint: endpoint, Body: body, Headers: headers})
	f.mu.Unlock()
	return f.respond(endpoint, body)
}

func (f *fakeTransport) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Endpoint == endpoint {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last() postedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func jsonResponse(body string) *HTTPResponse {
	return &HTTPResponse{StatusCode: 200, Body: []byte(body)}
}

func testCredentials() Credentials {
	return Credentials{
		Mode:               AuthModeMasterSub,
		MerchantCode:       "M1",
		MasterMerchantCode: "MASTER1",
		SubMerchantCode:    "SUB1",
		ClientID:           "client",
		ClientSecret:       "secret",
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	calls  []CallRecord
	events []WebhookEvent
}

func (o *recordingObserver) ObserveCall(ctx context.Context, rec CallRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, rec)
}

func (o *recordingObserver) ObserveWebhook(ctx context.Context, ev WebhookEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}
