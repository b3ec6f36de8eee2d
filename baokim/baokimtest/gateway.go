// Package baokimtest provides an in-process gateway for tests of code built
// on baokim.Client.
package baokimtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/stretchr/testify/require"
)

// Request is one call received by the Gateway.
type Request struct {
	Path          string
	Body          []byte
	Signature     string
	Authorization string
}

// JSON decodes the request body.
func (r Request) JSON(t testing.TB) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m))
	return m
}

// Gateway answers token requests with a fixed token and every other
// endpoint with Reply.
type Gateway struct {
	*httptest.Server
	Signer *baokim.Signer

	mu       sync.Mutex
	requests []Request
	reply    string
	status   int
}

// NewGateway starts a gateway replying with reply and status 200.
func NewGateway(t testing.TB, reply string) *Gateway {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	g := &Gateway{
		Signer: baokim.NewSignerFromKeys(key, &key.PublicKey),
		reply:  reply,
		status: http.StatusOK,
	}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.Close)
	return g
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	g.mu.Lock()
	g.requests = append(g.requests, Request{
		Path:          r.URL.Path,
		Body:          body,
		Signature:     r.Header.Get("Signature"),
		Authorization: r.Header.Get("Authorization"),
	})
	reply, status := g.reply, g.status
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == baokim.TokenEndpoint {
		w.Write([]byte(`{"code":0,"message":"Success","data":{"access_token":"test-token","expires_in":3600}}`))
		return
	}
	w.WriteHeader(status)
	w.Write([]byte(reply))
}

// SetReply changes the body and status returned for API calls.
func (g *Gateway) SetReply(status int, reply string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	g.reply = reply
}

// Last returns the most recent request.
func (g *Gateway) Last() Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return Request{}
	}
	return g.requests[len(g.requests)-1]
}

// Count returns how many requests hit path, or all requests when path is empty.
func (g *Gateway) Count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if path == "" {
		return len(g.requests)
	}
	n := 0
	for _, r := range g.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Client returns a baokim.Client pointed at the gateway.
func (g *Gateway) Client(creds baokim.Credentials, opts ...baokim.ClientOption) *baokim.Client {
	tr := baokim.NewHTTPTransport(baokim.CreateHTTPClientConfig(g.URL, 0, 0))
	tokens := baokim.NewTokenManager(tr, g.Signer, creds)
	return baokim.NewClient(tr, tokens, g.Signer, opts...)
}

// Credentials returns master/sub credentials for tests.
func Credentials() baokim.Credentials {
	return baokim.Credentials{
		Mode:               baokim.AuthModeMasterSub,
		MerchantCode:       "M1",
		MasterMerchantCode: "MASTER1",
		SubMerchantCode:    "SUB1",
		ClientID:           "cid",
		ClientSecret:       "csecret",
	}
}

// DirectCredentials returns direct-mode credentials for tests.
func DirectCredentials() baokim.Credentials {
	creds := Credentials()
	creds.Mode = baokim.AuthModeDirect
	return creds
}
