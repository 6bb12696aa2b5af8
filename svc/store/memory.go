package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/practicebilling/svc/payment"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

type memoryTxKey struct{}

// Memory is a process-local store.
type Memory struct {
	txMu sync.Mutex

	mu   sync.RWMutex
	subs map[uuid.UUID]*subscription.Subscription
	txns map[uuid.UUID]*payment.Transaction
}

func NewMemory() *Memory {
	return &Memory{
		subs: make(map[uuid.UUID]*subscription.Subscription),
		txns: make(map[uuid.UUID]*payment.Transaction),
	}
}

// WithinTx runs fn exclusively. If fn fails, every write it made is undone.
func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemoryTx(ctx) {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	subs := maps.Clone(m.subs)
	txns := maps.Clone(m.txns)
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.subs = subs
		m.txns = txns
		m.mu.Unlock()
		return err
	}
	return nil
}

func inMemoryTx(ctx context.Context) bool {
	v, _ := ctx.Value(memoryTxKey{}).(bool)
	return v
}

// write runs fn under the data lock, waiting for any open unit of work when
// called outside of one.
func (m *Memory) write(ctx context.Context, fn func() error) error {
	if !inMemoryTx(ctx) {
		m.txMu.Lock()
		defer m.txMu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}

// LockAccount is a no-op: units of work are already exclusive.
func (m *Memory) LockAccount(context.Context, string) error {
	return nil
}

func (m *Memory) GetSubscription(_ context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	return sub.Clone(), nil
}

func (m *Memory) GetSubscriptionByPaymentID(_ context.Context, paymentID string) (*subscription.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if paymentID != "" {
		for _, sub := range m.subs {
			if sub.PaymentID == paymentID {
				return sub.Clone(), nil
			}
		}
	}
	return nil, subscription.ErrNotFound
}

func (m *Memory) ListSubscriptionsByAccount(_ context.Context, accountID string) ([]*subscription.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*subscription.Subscription
	for _, sub := range m.subs {
		if sub.AccountID == accountID {
			out = append(out, sub.Clone())
		}
	}
	sortSubscriptions(out)
	return out, nil
}

func (m *Memory) ListSubscriptionsByStatus(_ context.Context, statuses ...subscription.Status) ([]*subscription.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*subscription.Subscription
	for _, sub := range m.subs {
		if slices.Contains(statuses, sub.Status) {
			out = append(out, sub.Clone())
		}
	}
	sortSubscriptions(out)
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return m.write(ctx, func() error {
		if _, ok := m.subs[sub.ID]; ok {
			return subscription.ErrConflict
		}
		if err := m.checkSubscriptionLocked(sub); err != nil {
			return err
		}
		m.subs[sub.ID] = sub.Clone()
		return nil
	})
}

func (m *Memory) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return m.write(ctx, func() error {
		if _, ok := m.subs[sub.ID]; !ok {
			return subscription.ErrNotFound
		}
		if err := m.checkSubscriptionLocked(sub); err != nil {
			return err
		}
		m.subs[sub.ID] = sub.Clone()
		return nil
	})
}

// checkSubscriptionLocked mirrors the Postgres unique indexes.
func (m *Memory) checkSubscriptionLocked(sub *subscription.Subscription) error {
	for id, other := range m.subs {
		if id == sub.ID {
			continue
		}
		if sub.Status == subscription.StatusActive && other.Status == subscription.StatusActive && other.AccountID == sub.AccountID {
			return subscription.ErrConflict
		}
		if sub.PaymentID != "" && other.PaymentID == sub.PaymentID {
			return subscription.ErrConflict
		}
	}
	return nil
}

func (m *Memory) CreateTransaction(ctx context.Context, txn *payment.Transaction) error {
	return m.write(ctx, func() error {
		for _, other := range m.txns {
			if other.ID == txn.ID || other.GatewayOrderID == txn.GatewayOrderID {
				return subscription.ErrConflict
			}
		}
		m.txns[txn.ID] = txn.Clone()
		return nil
	})
}

func (m *Memory) GetTransactionByOrderID(_ context.Context, orderID string) (*payment.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, txn := range m.txns {
		if txn.GatewayOrderID == orderID {
			return txn.Clone(), nil
		}
	}
	return nil, subscription.ErrNotFound
}

func (m *Memory) GetTransactionByPaymentID(_ context.Context, paymentID string) (*payment.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if paymentID != "" {
		for _, txn := range m.txns {
			if txn.GatewayPaymentID == paymentID {
				return txn.Clone(), nil
			}
		}
	}
	return nil, subscription.ErrNotFound
}

func (m *Memory) UpdateTransaction(ctx context.Context, txn *payment.Transaction) error {
	return m.write(ctx, func() error {
		if _, ok := m.txns[txn.ID]; !ok {
			return subscription.ErrNotFound
		}
		m.txns[txn.ID] = txn.Clone()
		return nil
	})
}

func (m *Memory) ListTransactionsByAccount(_ context.Context, accountID string) ([]*payment.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*payment.Transaction
	for _, txn := range m.txns {
		if txn.AccountID == accountID {
			out = append(out, txn.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *payment.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func sortSubscriptions(subs []*subscription.Subscription) {
	slices.SortFunc(subs, func(a, b *subscription.Subscription) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return b.StartDate.Compare(a.StartDate)
	})
}
