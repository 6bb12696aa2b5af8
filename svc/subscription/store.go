package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store persists subscriptions.
type Store interface {
	// GetSubscription returns ErrNotFound when id is unknown.
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// GetSubscriptionByPaymentID returns ErrNotFound when no subscription
	// was produced by the payment.
	GetSubscriptionByPaymentID(ctx context.Context, paymentID string) (*Subscription, error)
	// ListSubscriptionsByAccount returns all subscriptions, newest first.
	ListSubscriptionsByAccount(ctx context.Context, accountID string) ([]*Subscription, error)
	// ListSubscriptionsByStatus returns subscriptions in any of the statuses.
	ListSubscriptionsByStatus(ctx context.Context, statuses ...Status) ([]*Subscription, error)
	// CreateSubscription returns ErrConflict when the account already holds
	// an ACTIVE subscription or the payment id is taken.
	CreateSubscription(ctx context.Context, sub *Subscription) error
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	// LockAccount serialises writers for one account until the surrounding
	// unit of work ends.
	LockAccount(ctx context.Context, accountID string) error
}

// Transactor runs fn in a single unit of work. Calls nested inside fn join
// the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
