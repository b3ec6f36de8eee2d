package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mstgnz/gobaokim/baokim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ WebhookProcessor = (*baokim.Webhook)(nil)

const refundPayload = `{"operation":"REFUND_TRANS","order":{"mrc_order_id":"ORDER-2"},"payment_result":{"status":1,"amount":5000}}`

func newTestWebhook(t *testing.T) (*baokim.Webhook, *baokim.Signer, *[]string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := baokim.NewSignerFromKeys(key, &key.PublicKey)

	var seen []string
	wh := baokim.NewWebhook(signer).OnRefund(func(ctx context.Context, data, payload map[string]any) (*baokim.WebhookReply, error) {
		seen = append(seen, "refund")
		return nil, nil
	})
	return wh, signer, &seen
}

func postWebhook(h *WebhookHandler, body, signature string) baokim.WebhookReply {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/baokim", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(baokim.SignatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	h.Receive(rr, req)

	var reply baokim.WebhookReply
	if rr.Code != http.StatusOK {
		return baokim.WebhookReply{Code: -rr.Code}
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &reply)
	return reply
}

func TestWebhookHandler_VerifiedDelivery(t *testing.T) {
	wh, signer, seen := newTestWebhook(t)
	h := NewWebhookHandler(wh, true)

	sig, err := signer.Sign([]byte(refundPayload))
	require.NoError(t, err)

	reply := postWebhook(h, refundPayload, sig)
	assert.Equal(t, baokim.ReplySuccess, reply)
	assert.Equal(t, []string{"refund"}, *seen)
}

func TestWebhookHandler_RejectsBadSignatureWith200(t *testing.T) {
	wh, _, seen := newTestWebhook(t)
	h := NewWebhookHandler(wh, true)

	reply := postWebhook(h, refundPayload, "bm90LWEtc2lnbmF0dXJl")
	assert.Equal(t, baokim.ReplyInvalidSignature, reply)

	reply = postWebhook(h, refundPayload, "")
	assert.Equal(t, baokim.ReplyInvalidSignature, reply)
	assert.Empty(t, *seen)
}

func TestWebhookHandler_VerificationDisabled(t *testing.T) {
	wh, _, seen := newTestWebhook(t)
	h := NewWebhookHandler(wh, false)

	assert.Equal(t, baokim.ReplySuccess, postWebhook(h, refundPayload, ""))
	assert.Equal(t, baokim.ReplyInvalidJSON, postWebhook(h, `{"operation":`, ""))
	assert.Equal(t, baokim.ReplyUnknownOperation, postWebhook(h, `{"operation":"SOMETHING"}`, ""))
	assert.Len(t, *seen, 1)
}

type stubProcessor struct {
	raw       string
	signature string
	verify    bool
}

func (s *stubProcessor) Process(ctx context.Context, raw []byte, signature string, verify bool) baokim.WebhookReply {
	s.raw, s.signature, s.verify = string(raw), signature, verify
	return baokim.WebhookReply{Code: 0, Message: "Success"}
}

func TestWebhookHandler_PassesRawBytes(t *testing.T) {
	p := &stubProcessor{}
	h := NewWebhookHandler(p, true)

	body := "{\"operation\": \"PAYMENT_TRANS\",\n \"note\": \"<b>&\"}"
	postWebhook(h, body, "sig==")

	assert.Equal(t, body, p.raw)
	assert.Equal(t, "sig==", p.signature)
	assert.True(t, p.verify)
}
