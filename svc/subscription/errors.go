package subscription

import (
	"errors"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
)

var (
	ErrAlreadyActive        = apperr.BusinessRule("ALREADY_ACTIVE", "account already has an active subscription", "You already have an active subscription.")
	ErrNoActiveSubscription = apperr.BusinessRule("NO_ACTIVE_SUBSCRIPTION", "account has no active subscription", "You do not have an active subscription.")
	ErrAlreadyLinked        = apperr.BusinessRule("PAYMENT_ALREADY_PROCESSED", "payment is already linked to a subscription", "This payment has already been processed.")
	ErrSamePlan             = apperr.Validation("SAME_PLAN", "new plan equals current plan", "You are already on this plan.")
	ErrInvalidPlan          = apperr.Validation("INVALID_PLAN", "invalid plan", "Please choose a valid plan.")
	ErrAccountRequired      = apperr.Validation("ACCOUNT_REQUIRED", "account id is required", "Account is required.")
	ErrSubscriptionNotFound = apperr.Validation("SUBSCRIPTION_NOT_FOUND", "subscription not found", "Subscription not found.")
)

// Store errors. Implementations return these so the service can map them.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with an existing row")
)

// dbError classifies a store failure. Already classified errors pass through.
func dbError(msg string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Database(msg, err)
}
