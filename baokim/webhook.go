package baokim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mstgnz/gobaokim/infra/logger"
)

// Operation classifies an inbound webhook.
type Operation string

const (
	OperationPayment         Operation = "PAYMENT_TRANS"
	OperationRefund          Operation = "REFUND_TRANS"
	OperationCancelAutoDebit Operation = "CANCEL_AUTO_DEBIT"
	// OperationVAPayment has no wire value: VA notifications carry
	// transaction/va_info instead of an operation field.
	OperationVAPayment Operation = "VA_PAYMENT"
	OperationUnknown   Operation = "UNKNOWN"
)

// SignatureHeader carries the gateway signature on webhooks and requests.
const SignatureHeader = "Signature"

// WebhookReply is the JSON body returned to the gateway.
type WebhookReply struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard replies.
var (
	ReplySuccess          = WebhookReply{Code: CodeSuccess, Message: "Success"}
	ReplyInvalidSignature = WebhookReply{Code: CodeSignatureInvalid, Message: "Invalid signature"}
	ReplyInvalidJSON      = WebhookReply{Code: CodeDataInvalid, Message: "Invalid JSON payload"}
	ReplyUnknownOperation = WebhookReply{Code: CodeDataInvalid, Message: "Unknown operation type"}
	ReplyInternalError    = WebhookReply{Code: CodeHTTPServerError, Message: "Internal server error"}
)

// WebhookHandler receives the extracted data block and the full payload.
// Returning a nil reply acknowledges the notification with ReplySuccess.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, data, payload map[string]any) (*WebhookReply, error)
}

// WebhookHandlerFunc adapts a function to WebhookHandler.
type WebhookHandlerFunc func(ctx context.Context, data, payload map[string]any) (*WebhookReply, error)

func (f WebhookHandlerFunc) HandleWebhook(ctx context.Context, data, payload map[string]any) (*WebhookReply, error) {
	return f(ctx, data, payload)
}

// Webhook verifies inbound notifications and dispatches them to registered
// handlers. It is safe for concurrent use.
type Webhook struct {
	verifier  SignatureVerifier
	mu        sync.RWMutex
	handlers  map[Operation]WebhookHandler
	observers []WebhookObserver
	now       func() time.Time
}

// NewWebhook creates a dispatcher that verifies with verifier.
func NewWebhook(verifier SignatureVerifier, observers ...WebhookObserver) *Webhook {
	return &Webhook{
		verifier:  verifier,
		handlers:  make(map[Operation]WebhookHandler),
		observers: observers,
		now:       time.Now,
	}
}

// Handle registers h for op, replacing any previous handler.
func (w *Webhook) Handle(op Operation, h WebhookHandler) *Webhook {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[op] = h
	return w
}

// OnPayment registers the PAYMENT_TRANS handler.
func (w *Webhook) OnPayment(fn WebhookHandlerFunc) *Webhook {
	return w.Handle(OperationPayment, fn)
}

// OnRefund registers the REFUND_TRANS handler.
func (w *Webhook) OnRefund(fn WebhookHandlerFunc) *Webhook {
	return w.Handle(OperationRefund, fn)
}

// OnCancelAutoDebit registers the CANCEL_AUTO_DEBIT handler.
func (w *Webhook) OnCancelAutoDebit(fn WebhookHandlerFunc) *Webhook {
	return w.Handle(OperationCancelAutoDebit, fn)
}

// OnVAPayment registers the handler for virtual account notifications.
func (w *Webhook) OnVAPayment(fn WebhookHandlerFunc) *Webhook {
	return w.Handle(OperationVAPayment, fn)
}

// AddObserver registers an observer for processed deliveries.
func (w *Webhook) AddObserver(o WebhookObserver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, o)
}

// handler returns the handler for op. VA notifications fall back to the
// payment handler when no VA handler is registered.
func (w *Webhook) handler(op Operation) WebhookHandler {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if h, ok := w.handlers[op]; ok {
		return h
	}
	if op == OperationVAPayment {
		return w.handlers[OperationPayment]
	}
	return nil
}

// Process runs verification, classification and dispatch over the raw body.
// It never returns an error: every outcome is a reply for the gateway.
func (w *Webhook) Process(ctx context.Context, raw []byte, signature string, verify bool) WebhookReply {
	start := w.now()
	ev := WebhookEvent{
		Operation:  OperationUnknown,
		RawBody:    string(raw),
		ReceivedAt: start,
	}

	reply := w.process(ctx, raw, signature, verify, &ev)

	ev.ReplyCode = reply.Code
	ev.ReplyMessage = reply.Message
	ev.Duration = w.now().Sub(start)

	w.mu.RLock()
	observers := append([]WebhookObserver(nil), w.observers...)
	w.mu.RUnlock()
	for _, o := range observers {
		o.ObserveWebhook(ctx, ev)
	}
	return reply
}

func (w *Webhook) process(ctx context.Context, raw []byte, signature string, verify bool, ev *WebhookEvent) WebhookReply {
	if verify {
		if err := w.verify(raw, signature); err != nil {
			if errors.Is(err, ErrKey) {
				logger.Error("Webhook verification unavailable", err, logger.LogContext{Operation: "webhook"})
				return ReplyInternalError
			}
			logger.Warn("Webhook signature rejected", logger.LogContext{
				Operation: "webhook",
				Fields:    map[string]any{"reason": err.Error()},
			})
			return ReplyInvalidSignature
		}
		ev.Verified = true
	}

	payload, err := decodePayload(raw)
	if err != nil {
		return ReplyInvalidJSON
	}

	op := ClassifyOperation(payload)
	ev.Operation = op
	ev.MrcOrderID = extractOrderID(payload)

	var data map[string]any
	switch op {
	case OperationPayment, OperationRefund:
		result, ok := payload["payment_result"].(map[string]any)
		if !ok {
			return WebhookReply{Code: CodeDataInvalid, Message: "payment_result not found"}
		}
		data = result
	case OperationCancelAutoDebit:
		data = payload
	case OperationVAPayment:
		data = map[string]any{
			"transaction": payload["transaction"],
			"va_info":     payload["va_info"],
		}
	default:
		return ReplyUnknownOperation
	}

	return w.dispatch(ctx, op, data, payload)
}

// verify returns ErrWebhookVerification for a missing or bad signature and
// ErrKey when no public key is available.
func (w *Webhook) verify(raw []byte, signature string) error {
	if signature == "" {
		return newError(KindWebhookVerification, "missing signature header", nil)
	}
	if len(raw) == 0 {
		return newError(KindWebhookVerification, "empty body", nil)
	}
	if w.verifier == nil {
		return newError(KindKey, "no signature verifier configured", nil)
	}
	ok, err := w.verifier.Verify(raw, signature)
	if err != nil {
		return err
	}
	if !ok {
		return newError(KindWebhookVerification, "signature mismatch", nil)
	}
	return nil
}

func (w *Webhook) dispatch(ctx context.Context, op Operation, data, payload map[string]any) (reply WebhookReply) {
	h := w.handler(op)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Webhook handler panicked", fmt.Errorf("%v", r), logger.LogContext{
				Operation: string(op),
			})
			reply = WebhookReply{Code: CodeHTTPServerError, Message: fmt.Sprintf("Handler error: %v", r)}
		}
	}()

	if h == nil {
		logger.Info("Webhook received without handler", logger.LogContext{
			Operation: string(op),
		})
		return ReplySuccess
	}

	custom, err := h.HandleWebhook(ctx, data, payload)
	if err != nil {
		logger.Error("Webhook handler failed", err, logger.LogContext{
			Operation: string(op),
		})
		return WebhookReply{Code: CodeHTTPServerError, Message: "Handler error: " + err.Error()}
	}
	if custom != nil {
		return *custom
	}

	logger.Info("Webhook processed", logger.LogContext{
		Operation: string(op),
	})
	return ReplySuccess
}

// ClassifyOperation maps a decoded payload to its Operation.
func ClassifyOperation(payload map[string]any) Operation {
	if op, ok := payload["operation"].(string); ok {
		switch Operation(op) {
		case OperationPayment, OperationRefund, OperationCancelAutoDebit:
			return Operation(op)
		}
	}
	_, hasTransaction := payload["transaction"]
	_, hasVAInfo := payload["va_info"]
	if hasTransaction || hasVAInfo {
		return OperationVAPayment
	}
	return OperationUnknown
}

func decodePayload(raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	return payload, nil
}

// extractOrderID finds mrc_order_id wherever the operation puts it.
func extractOrderID(payload map[string]any) string {
	candidates := []any{payload}
	for _, key := range []string{"order", "payment_result", "transaction", "va_info"} {
		candidates = append(candidates, payload[key])
	}
	for _, c := range candidates {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := m["mrc_order_id"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// ServeHTTP adapts the dispatcher to net/http with verification enabled. The
// reply is always written with status 200.
func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	raw, err := ReadBody(rw, r)
	var reply WebhookReply
	if err != nil {
		reply = ReplyInvalidJSON
	} else {
		reply = w.Process(r.Context(), raw, r.Header.Get(SignatureHeader), true)
	}
	WriteReply(rw, reply)
}

// MaxWebhookBody bounds the bytes read from an inbound notification.
const MaxWebhookBody = 1 << 20

// ReadBody reads the request body unchanged.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, MaxWebhookBody)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteReply writes reply as JSON with status 200.
func WriteReply(rw http.ResponseWriter, reply WebhookReply) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(reply)
}
