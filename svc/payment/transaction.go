package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// TransactionStatus is the state of a payment transaction.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusSuccess  TransactionStatus = "SUCCESS"
	StatusFailed   TransactionStatus = "FAILED"
	StatusRefunded TransactionStatus = "REFUNDED"
)

// CanTransitionTo reports whether status may move to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSuccess || next == StatusFailed
	case StatusSuccess:
		return next == StatusRefunded
	default:
		return false
	}
}

// Transaction tracks one gateway order from creation to settlement.
// Allowed transitions: PENDING -> SUCCESS | FAILED, SUCCESS -> REFUNDED.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	AccountID        string            `json:"account_id"`
	Plan             subscription.Plan `json:"plan"`
	GatewayOrderID   string            `json:"gateway_order_id"`
	GatewayPaymentID string            `json:"gateway_payment_id,omitempty"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	SubscriptionID   *uuid.UUID        `json:"subscription_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Clone returns a copy that shares nothing with t.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	if t.SubscriptionID != nil {
		id := *t.SubscriptionID
		cp.SubscriptionID = &id
	}
	return &cp
}

// TransactionStore persists payment transactions. Lookups of unknown rows
// return subscription.ErrNotFound; a second transaction for the same order
// returns subscription.ErrConflict.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn *Transaction) error
	GetTransactionByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	GetTransactionByPaymentID(ctx context.Context, paymentID string) (*Transaction, error)
	UpdateTransaction(ctx context.Context, txn *Transaction) error
	// ListTransactionsByAccount returns transactions newest first.
	ListTransactionsByAccount(ctx context.Context, accountID string) ([]*Transaction, error)
	// LockAccount serialises payment completion per account inside a unit
	// of work.
	LockAccount(ctx context.Context, accountID string) error
}
