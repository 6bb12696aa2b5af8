// Package gateway talks to the payment gateway's order and payment REST API.
//
// Client is the narrow surface the billing engine needs: creating an order
// before checkout and fetching a payment to confirm its state. HTTPClient is
// the production implementation (basic auth, bounded timeouts, circuit
// breaker); MemoryClient is an in-process fake for tests and local runs.
//
// Every failure is returned as an *apperr.Error: 4xx responses are
// validation errors, while 5xx responses, timeouts and network errors are
// retryable gateway errors.
package gateway
