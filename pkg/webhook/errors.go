package webhook

import (
	"errors"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
)

var (
	ErrInvalidSignature = apperr.Signature("INVALID_SIGNATURE", "webhook signature mismatch")
	ErrEmptyPayload     = apperr.Validation("EMPTY_PAYLOAD", "webhook payload is empty", "The webhook payload is empty.")

	ErrProcessorStopped = errors.New("webhook processor is stopped")
	ErrNilHandler       = errors.New("webhook job handler is nil")
	ErrJobStore         = errors.New("webhook job store failure")
)
