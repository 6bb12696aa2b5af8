package apperr

import (
	"errors"
	"net/http"
)

// Kind is the closed set of error classes the billing engine reports.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindSignature    Kind = "signature"
	KindGateway      Kind = "gateway"
	KindDatabase     Kind = "database"
	KindBusinessRule Kind = "business_rule"
	KindRateLimit    Kind = "rate_limit"
)

// Error is the single error shape shared by every package of the engine.
// Code is stable and safe to expose, Message is technical (logged) and
// UserMessage is what callers may show to a human.
type Error struct {
	Kind        Kind
	Code        string
	Message     string
	UserMessage string
	Retryable   bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by code so sentinel values keep working after Wrap/WithCause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// WithCause returns a copy of e carrying err as the underlying cause.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage returns a copy of e with a more specific technical message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Validation reports bad input. Never retried.
func Validation(code, msg, userMsg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg, UserMessage: userMsg}
}

// Signature reports a failed authenticity check. Fails closed, never retried.
func Signature(code, msg string) *Error {
	return &Error{
		Kind:        KindSignature,
		Code:        code,
		Message:     msg,
		UserMessage: "The request could not be authenticated.",
	}
}

// Gateway reports a payment gateway failure. Retryable by default.
func Gateway(code, msg string) *Error {
	return &Error{
		Kind:        KindGateway,
		Code:        code,
		Message:     msg,
		UserMessage: "The payment provider is temporarily unavailable. Please try again.",
		Retryable:   true,
	}
}

// Database reports a persistence failure. Retryable, bounded by the caller.
func Database(msg string, err error) *Error {
	return &Error{
		Kind:        KindDatabase,
		Code:        "DATABASE_ERROR",
		Message:     msg,
		UserMessage: "Something went wrong on our side. Please try again.",
		Retryable:   true,
		Err:         err,
	}
}

// BusinessRule reports a violated domain rule. Never retried.
func BusinessRule(code, msg, userMsg string) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: msg, UserMessage: userMsg}
}

// RateLimit reports an exhausted usage window. Not retried automatically.
func RateLimit(code, msg string) *Error {
	return &Error{
		Kind:        KindRateLimit,
		Code:        code,
		Message:     msg,
		UserMessage: "Usage limit reached. Please try again later.",
	}
}

// As extracts the first *Error in err's tree.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or an empty Kind for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Code returns the stable code of err. Foreign errors map to UNKNOWN.
func Code(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "UNKNOWN"
}

// IsRetryable reports whether err should be retried. Errors that were never
// classified are treated as transient so the caller can decide.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return true
}

// UserMessage returns the non-technical message for err.
func UserMessage(err error) string {
	if e, ok := As(err); ok && e.UserMessage != "" {
		return e.UserMessage
	}
	return "An unexpected error occurred."
}

// HTTPStatus maps err to the status code used by the API layer.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindSignature:
		return http.StatusUnauthorized
	case KindBusinessRule:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindGateway:
		return http.StatusBadGateway
	case KindDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
