package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
)

var (
	ErrCircuitOpen      = apperr.Gateway("GATEWAY_CIRCUIT_OPEN", "gateway calls suspended after repeated failures")
	ErrTimeout          = apperr.Gateway("GATEWAY_TIMEOUT", "gateway request timed out")
	ErrNetwork          = apperr.Gateway("GATEWAY_NETWORK", "gateway unreachable")
	ErrUnavailable      = apperr.Gateway("GATEWAY_UNAVAILABLE", "gateway server error")
	ErrUnknown          = apperr.Gateway("GATEWAY_UNKNOWN", "unexpected gateway failure")
	ErrBadRequest       = apperr.Validation("GATEWAY_BAD_REQUEST", "gateway rejected the request", "The payment details were rejected. Please check and try again.")
	ErrPaymentNotFound  = apperr.Validation("PAYMENT_NOT_FOUND", "payment not found at gateway", "We could not find this payment.")
	ErrMissingPaymentID = apperr.Validation("PAYMENT_ID_REQUIRED", "payment id is required", "Payment id is required.")
)

// ClassifyStatus maps a non-2xx gateway response to an engine error.
// detail is the decoded gateway error description, if any.
func ClassifyStatus(status int, detail string) *apperr.Error {
	msg := fmt.Sprintf("gateway responded %d", status)
	if detail != "" {
		msg += ": " + detail
	}

	switch {
	case status == http.StatusNotFound:
		return ErrPaymentNotFound.WithMessage(msg)
	case status >= 400 && status < 500:
		return ErrBadRequest.WithMessage(msg)
	case status >= 500:
		return ErrUnavailable.WithMessage(msg)
	default:
		return ErrUnknown.WithMessage(msg)
	}
}

// ClassifyError maps a transport failure to an engine error. Errors that are
// already classified pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout.WithCause(err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout.WithCause(err)
	case errors.As(err, &netErr):
		return ErrNetwork.WithCause(err)
	default:
		return ErrUnknown.WithCause(err)
	}
}
