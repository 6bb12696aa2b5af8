package access

import (
	"errors"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
)

// Denial reasons reported in Decision.Reason.
const (
	ReasonNoSubscription    = "NO_SUBSCRIPTION"
	ReasonExpired           = "SUBSCRIPTION_EXPIRED"
	ReasonCancelled         = "SUBSCRIPTION_CANCELLED"
	ReasonInsufficientPlan  = "INSUFFICIENT_PLAN"
	ReasonRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

var (
	ErrUnknownFeature    = apperr.Validation("UNKNOWN_FEATURE", "feature is not registered", "Unknown feature.")
	ErrAccountRequired   = apperr.Validation("ACCOUNT_REQUIRED", "account id is required", "Account is required.")
	ErrNoSubscription    = apperr.BusinessRule(ReasonNoSubscription, "account has no subscription", "This feature requires a subscription.")
	ErrExpired           = apperr.BusinessRule(ReasonExpired, "subscription expired", "Your subscription has expired. Please renew to continue.")
	ErrCancelled         = apperr.BusinessRule(ReasonCancelled, "subscription cancelled", "Your subscription was cancelled.")
	ErrInsufficientPlan  = apperr.BusinessRule(ReasonInsufficientPlan, "plan below feature minimum", "Please upgrade your plan to use this feature.")
	ErrRateLimitExceeded = apperr.RateLimit(ReasonRateLimitExceeded, "feature usage limit reached")

	ErrInvalidRegistry = errors.New("invalid feature registry")
)

var denials = map[string]*apperr.Error{
	ReasonNoSubscription:    ErrNoSubscription,
	ReasonExpired:           ErrExpired,
	ReasonCancelled:         ErrCancelled,
	ReasonInsufficientPlan:  ErrInsufficientPlan,
	ReasonRateLimitExceeded: ErrRateLimitExceeded,
}
