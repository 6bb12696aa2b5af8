package store

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/practicebilling/pkg/pg"
	"github.com/dmitrymomot/practicebilling/svc/payment"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// Postgres stores subscriptions and transactions with pgx.
type Postgres struct {
	db *pg.DB
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pg.NewDB(pool)}
}

func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.db.WithinTx(ctx, fn)
}

// LockAccount takes a transaction scoped advisory lock keyed by the account.
// Outside a transaction it returns immediately after acquiring and releasing.
func (p *Postgres) LockAccount(ctx context.Context, accountID string) error {
	h := fnv.New64a()
	_, _ = h.Write([]byte("billing:account:" + accountID))
	_, err := p.db.Conn(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(h.Sum64()))
	return err
}

const subscriptionColumns = `id, account_id, plan, status, start_date, end_date, amount, currency,
	auto_renew, cancelled_at, payment_id, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		s         subscription.Subscription
		paymentID *string
	)
	err := row.Scan(&s.ID, &s.AccountID, &s.Plan, &s.Status, &s.StartDate, &s.EndDate,
		&s.Amount, &s.Currency, &s.AutoRenew, &s.CancelledAt, &paymentID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paymentID != nil {
		s.PaymentID = *paymentID
	}
	return &s, nil
}

func (p *Postgres) getSubscription(ctx context.Context, where string, arg any) (*subscription.Subscription, error) {
	row := p.db.Conn(ctx).QueryRow(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE "+where, arg)
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrNotFound
	}
	return sub, err
}

func (p *Postgres) GetSubscription(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return p.getSubscription(ctx, "id = $1", id)
}

func (p *Postgres) GetSubscriptionByPaymentID(ctx context.Context, paymentID string) (*subscription.Subscription, error) {
	if paymentID == "" {
		return nil, subscription.ErrNotFound
	}
	return p.getSubscription(ctx, "payment_id = $1", paymentID)
}

func (p *Postgres) listSubscriptions(ctx context.Context, where string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := p.db.Conn(ctx).Query(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE "+where+" ORDER BY created_at DESC, start_date DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptionsByAccount(ctx context.Context, accountID string) ([]*subscription.Subscription, error) {
	return p.listSubscriptions(ctx, "account_id = $1", accountID)
}

func (p *Postgres) ListSubscriptionsByStatus(ctx context.Context, statuses ...subscription.Status) ([]*subscription.Subscription, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return p.listSubscriptions(ctx, "status = ANY($1)", names)
}

func (p *Postgres) CreateSubscription(ctx context.Context, s *subscription.Subscription) error {
	_, err := p.db.Conn(ctx).Exec(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.AccountID, s.Plan, s.Status, s.StartDate, s.EndDate, s.Amount, s.Currency,
		s.AutoRenew, s.CancelledAt, nullable(s.PaymentID), s.CreatedAt, s.UpdatedAt)
	return mapWriteError(err)
}

func (p *Postgres) UpdateSubscription(ctx context.Context, s *subscription.Subscription) error {
	tag, err := p.db.Conn(ctx).Exec(ctx,
		`UPDATE subscriptions SET plan = $2, status = $3, start_date = $4, end_date = $5, amount = $6,
			currency = $7, auto_renew = $8, cancelled_at = $9, payment_id = $10, updated_at = $11
		WHERE id = $1`,
		s.ID, s.Plan, s.Status, s.StartDate, s.EndDate, s.Amount, s.Currency,
		s.AutoRenew, s.CancelledAt, nullable(s.PaymentID), s.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

const transactionColumns = `id, account_id, plan, gateway_order_id, gateway_payment_id, amount, currency,
	status, failure_reason, subscription_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (*payment.Transaction, error) {
	var (
		t         payment.Transaction
		paymentID *string
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.Plan, &t.GatewayOrderID, &paymentID, &t.Amount, &t.Currency,
		&t.Status, &t.FailureReason, &t.SubscriptionID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if paymentID != nil {
		t.GatewayPaymentID = *paymentID
	}
	return &t, nil
}

func (p *Postgres) getTransaction(ctx context.Context, where string, arg any) (*payment.Transaction, error) {
	row := p.db.Conn(ctx).QueryRow(ctx, "SELECT "+transactionColumns+" FROM payment_transactions WHERE "+where, arg)
	txn, err := scanTransaction(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrNotFound
	}
	return txn, err
}

func (p *Postgres) CreateTransaction(ctx context.Context, t *payment.Transaction) error {
	_, err := p.db.Conn(ctx).Exec(ctx,
		`INSERT INTO payment_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.AccountID, t.Plan, t.GatewayOrderID, nullable(t.GatewayPaymentID), t.Amount, t.Currency,
		t.Status, t.FailureReason, t.SubscriptionID, t.CreatedAt, t.UpdatedAt)
	return mapWriteError(err)
}

func (p *Postgres) GetTransactionByOrderID(ctx context.Context, orderID string) (*payment.Transaction, error) {
	return p.getTransaction(ctx, "gateway_order_id = $1", orderID)
}

func (p *Postgres) GetTransactionByPaymentID(ctx context.Context, paymentID string) (*payment.Transaction, error) {
	if paymentID == "" {
		return nil, subscription.ErrNotFound
	}
	return p.getTransaction(ctx, "gateway_payment_id = $1 ORDER BY updated_at DESC LIMIT 1", paymentID)
}

func (p *Postgres) UpdateTransaction(ctx context.Context, t *payment.Transaction) error {
	tag, err := p.db.Conn(ctx).Exec(ctx,
		`UPDATE payment_transactions SET gateway_payment_id = $2, status = $3, failure_reason = $4,
			subscription_id = $5, updated_at = $6
		WHERE id = $1`,
		t.ID, nullable(t.GatewayPaymentID), t.Status, t.FailureReason, t.SubscriptionID, t.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (p *Postgres) ListTransactionsByAccount(ctx context.Context, accountID string) ([]*payment.Transaction, error) {
	rows, err := p.db.Conn(ctx).Query(ctx,
		"SELECT "+transactionColumns+" FROM payment_transactions WHERE account_id = $1 ORDER BY created_at DESC", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*payment.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(subscription.ErrConflict, err)
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
