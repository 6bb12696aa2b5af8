package payment

import (
	"github.com/dmitrymomot/practicebilling/pkg/apperr"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

var (
	ErrInvalidRequest      = apperr.Validation("INVALID_REQUEST", "missing or malformed request fields", "Some required details are missing.")
	ErrInvalidCustomer     = apperr.Validation("INVALID_CUSTOMER", "customer details are invalid", "Please check your contact details.")
	ErrOrderNotFound       = apperr.Validation("ORDER_NOT_FOUND", "order not found", "We could not find this order.")
	ErrOrderMismatch       = apperr.Validation("ORDER_MISMATCH", "payment belongs to a different order", "This payment does not match the order.")
	ErrPaymentNotCompleted = apperr.Validation("PAYMENT_NOT_COMPLETED", "payment is not captured or authorized", "Your payment has not completed yet.")
	ErrTransactionNotFound = apperr.Validation("TRANSACTION_NOT_FOUND", "no transaction for payment", "We could not find this payment.")
	ErrMalformedEvent      = apperr.Validation("MALFORMED_EVENT", "webhook event could not be parsed", "Malformed event.")
	ErrInvalidSignature    = apperr.Signature("INVALID_SIGNATURE", "payment signature mismatch")
	ErrTransactionClosed   = apperr.BusinessRule("TRANSACTION_CLOSED", "transaction is in a terminal state", "This payment can no longer be completed.")
	ErrInvalidTransition   = apperr.BusinessRule("INVALID_TRANSACTION_TRANSITION", "transaction status change not allowed", "This payment cannot be updated.")

	// ErrAlreadyProcessed is returned for a payment that already produced a
	// subscription. It matches subscription.ErrAlreadyLinked.
	ErrAlreadyProcessed = subscription.ErrAlreadyLinked
)

func dbError(msg string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Database(msg, err)
}
