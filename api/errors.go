package api

import "github.com/dmitrymomot/practicebilling/pkg/apperr"

var (
	ErrMalformedBody = apperr.Validation("MALFORMED_BODY", "request body is not valid JSON", "The request body is invalid.")
	ErrBodyTooLarge  = apperr.Validation("BODY_TOO_LARGE", "request body exceeds the limit", "The request body is too large.")
	ErrUnauthorized  = apperr.Signature("UNAUTHORIZED", "missing or invalid admin token")
)
