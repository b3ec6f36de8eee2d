package baokim

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the failure classes a caller may need to handle differently.
type ErrorKind string

const (
	KindConfig              ErrorKind = "config"
	KindAuthentication      ErrorKind = "authentication"
	KindSign                ErrorKind = "sign"
	KindKey                 ErrorKind = "key"
	KindTransport           ErrorKind = "transport"
	KindValidation          ErrorKind = "validation"
	KindWebhookVerification ErrorKind = "webhook_verification"
)

// Sentinel values for errors.Is. Only the Kind is compared.
var (
	ErrConfig              = &Error{Kind: KindConfig}
	ErrAuthentication      = &Error{Kind: KindAuthentication}
	ErrSign                = &Error{Kind: KindSign}
	ErrKey                 = &Error{Kind: KindKey}
	ErrTransport           = &Error{Kind: KindTransport}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrWebhookVerification = &Error{Kind: KindWebhookVerification}
)

// Error is the single error type returned by this package and its variants.
type Error struct {
	Kind ErrorKind
	// Code is the gateway response code when the gateway produced one.
	Code *int
	// HTTPStatus is set for transport failures caused by a non-2xx reply.
	HTTPStatus int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Code != nil {
		msg = fmt.Sprintf("[%d] %s", *e.Code, msg)
	} else if e.HTTPStatus != 0 {
		msg = fmt.Sprintf("HTTP %d: %s", e.HTTPStatus, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("baokim %s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("baokim %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// GatewayCode returns the gateway code and whether one was present.
func (e *Error) GatewayCode() (int, bool) {
	if e.Code == nil {
		return 0, false
	}
	return *e.Code, true
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewValidationError builds a ValidationError for request builders.
func NewValidationError(message string, cause error) *Error {
	return newError(KindValidation, message, cause)
}

// NewConfigError builds a ConfigError.
func NewConfigError(message string, cause error) *Error {
	return newError(KindConfig, message, cause)
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func intPtr(v int) *int {
	return &v
}
