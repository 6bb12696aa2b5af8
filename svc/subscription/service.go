package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/practicebilling/pkg/logger"
)

// Service is the only writer of subscription status and end dates.
type Service struct {
	store   Store
	tx      Transactor
	catalog Catalog
	now     func() time.Time
	logger  *slog.Logger
}

// NewService panics if store or tx is nil.
func NewService(store Store, tx Transactor, opts ...ServiceOption) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if tx == nil {
		panic("subscription: Transactor is required")
	}

	s := &Service{
		store:   store,
		tx:      tx,
		catalog: DefaultCatalog(),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("subscription"))
	return s
}

// Catalog returns the configured plan prices.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// StatusView is the account's current subscription as seen at a point in time.
type StatusView struct {
	Subscription  *Subscription `json:"subscription,omitempty"`
	Status        Status        `json:"status,omitempty"`
	Entitled      bool          `json:"entitled"`
	DaysRemaining int           `json:"days_remaining"`
	GraceEndsAt   *time.Time    `json:"grace_ends_at,omitempty"`
}

// Status returns the subscription that currently governs the account:
// ACTIVE, else GRACE_PERIOD, else a paid-through CANCELLED one, else the most
// recent. View.Subscription is nil for accounts that never subscribed.
func (s *Service) Status(ctx context.Context, accountID string) (*StatusView, error) {
	if accountID == "" {
		return nil, ErrAccountRequired
	}

	now := s.now()
	subs, err := s.evaluatedForAccount(ctx, accountID, now)
	if err != nil {
		return nil, err
	}

	view := &StatusView{}
	sub := current(subs, now)
	if sub == nil {
		return view, nil
	}

	view.Subscription = sub
	view.Status = sub.Status
	view.Entitled = sub.Entitled(now)
	view.DaysRemaining = sub.DaysRemaining(now)
	if sub.Status == StatusGracePeriod {
		g := sub.GraceEndsAt()
		view.GraceEndsAt = &g
	}
	return view, nil
}

// Current returns the governing subscription or nil. Used by the access gate.
func (s *Service) Current(ctx context.Context, accountID string) (*Subscription, error) {
	view, err := s.Status(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return view.Subscription, nil
}

// Create starts a new paid period for plan. An account that still has an
// ACTIVE subscription is rejected; one in grace is superseded.
func (s *Service) Create(ctx context.Context, accountID string, plan Plan) (*Subscription, error) {
	if accountID == "" {
		return nil, ErrAccountRequired
	}
	price, err := s.price(plan)
	if err != nil {
		return nil, err
	}

	var created *Subscription
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		subs, err := s.lockAndEvaluate(ctx, accountID, now)
		if err != nil {
			return err
		}
		if active := find(subs, StatusActive); active != nil {
			return ErrAlreadyActive
		}
		if err := s.expireGrace(ctx, subs, now); err != nil {
			return err
		}

		created = newSubscription(accountID, plan, price, "", now)
		return s.insert(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription created",
		logger.AccountID(accountID),
		logger.SubscriptionID(created.ID),
		slog.String("plan", string(plan)),
	)
	return created, nil
}

// ActivateParams describes a confirmed payment.
type ActivateParams struct {
	AccountID string
	Plan      Plan
	PaymentID string
	Amount    int64
	Currency  string
}

// ActivateForPayment creates the subscription bought by a confirmed payment.
// It is idempotent per payment id: a payment that already produced a
// subscription returns that subscription together with ErrAlreadyLinked.
// A still ACTIVE subscription is replaced, the new period starting now.
func (s *Service) ActivateForPayment(ctx context.Context, p ActivateParams) (*Subscription, error) {
	if p.AccountID == "" {
		return nil, ErrAccountRequired
	}
	price, err := s.price(p.Plan)
	if err != nil {
		return nil, err
	}
	if p.Amount > 0 {
		price.Amount = p.Amount
	}
	if p.Currency != "" {
		price.Currency = p.Currency
	}

	var (
		activated *Subscription
		replaced  *Subscription
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if p.PaymentID != "" {
			_, err := s.store.GetSubscriptionByPaymentID(ctx, p.PaymentID)
			switch {
			case err == nil:
				return ErrAlreadyLinked
			case !errors.Is(err, ErrNotFound):
				return dbError("failed to look up subscription by payment", err)
			}
		}

		now := s.now()
		subs, err := s.lockAndEvaluate(ctx, p.AccountID, now)
		if err != nil {
			return err
		}
		if active := find(subs, StatusActive); active != nil {
			if err := s.cancel(ctx, active, now); err != nil {
				return err
			}
			replaced = active
		}
		if err := s.expireGrace(ctx, subs, now); err != nil {
			return err
		}

		activated = newSubscription(p.AccountID, p.Plan, price, p.PaymentID, now)
		return s.insert(ctx, activated)
	})
	if errors.Is(err, ErrAlreadyLinked) {
		existing, gerr := s.store.GetSubscriptionByPaymentID(ctx, p.PaymentID)
		if gerr != nil {
			return nil, ErrAlreadyLinked
		}
		return existing, ErrAlreadyLinked.WithMessage("payment " + p.PaymentID + " already activated subscription " + existing.ID.String())
	}
	if err != nil {
		return nil, err
	}

	attrs := []any{
		logger.AccountID(p.AccountID),
		logger.SubscriptionID(activated.ID),
		logger.PaymentID(p.PaymentID),
		slog.String("plan", string(p.Plan)),
	}
	if replaced != nil {
		attrs = append(attrs, slog.String("replaced_subscription_id", replaced.ID.String()))
	}
	s.logger.InfoContext(ctx, "subscription activated by payment", attrs...)
	return activated, nil
}

// Upgrade cancels the ACTIVE subscription and starts newPlan from now.
func (s *Service) Upgrade(ctx context.Context, accountID string, newPlan Plan) (*Subscription, error) {
	if accountID == "" {
		return nil, ErrAccountRequired
	}
	price, err := s.price(newPlan)
	if err != nil {
		return nil, err
	}

	var upgraded, previous *Subscription
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		subs, err := s.lockAndEvaluate(ctx, accountID, now)
		if err != nil {
			return err
		}
		previous = find(subs, StatusActive)
		if previous == nil {
			return ErrNoActiveSubscription
		}
		if previous.Plan == newPlan {
			return ErrSamePlan
		}
		if err := s.cancel(ctx, previous, now); err != nil {
			return err
		}

		upgraded = newSubscription(accountID, newPlan, price, "", now)
		return s.insert(ctx, upgraded)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription plan changed",
		logger.AccountID(accountID),
		logger.SubscriptionID(upgraded.ID),
		slog.String("from_plan", string(previous.Plan)),
		slog.String("to_plan", string(newPlan)),
	)
	return upgraded, nil
}

// Cancel stops renewal of the ACTIVE subscription. Access continues until
// the end date.
func (s *Service) Cancel(ctx context.Context, accountID string) (*Subscription, error) {
	if accountID == "" {
		return nil, ErrAccountRequired
	}

	var cancelled *Subscription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		subs, err := s.lockAndEvaluate(ctx, accountID, now)
		if err != nil {
			return err
		}
		cancelled = find(subs, StatusActive)
		if cancelled == nil {
			return ErrNoActiveSubscription
		}
		return s.cancel(ctx, cancelled, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription cancelled",
		logger.AccountID(accountID),
		logger.SubscriptionID(cancelled.ID),
		slog.Time("end_date", cancelled.EndDate),
	)
	return cancelled, nil
}

// Revoke ends a subscription whose payment was refunded. Access stops at now
// or the original end date, whichever comes first. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, now time.Time) (*Subscription, error) {
	var revoked *Subscription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sub, err := s.store.GetSubscription(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return dbError("failed to load subscription", err)
		}
		if err := s.store.LockAccount(ctx, sub.AccountID); err != nil {
			return dbError("failed to lock account", err)
		}

		if sub.Status == StatusCancelled && !sub.EndDate.After(now) {
			revoked = sub
			return nil
		}

		sub.Status = StatusCancelled
		sub.AutoRenew = false
		if sub.CancelledAt == nil {
			sub.CancelledAt = &now
		}
		if sub.EndDate.After(now) {
			sub.EndDate = now
		}
		sub.UpdatedAt = now
		if err := s.store.UpdateSubscription(ctx, sub); err != nil {
			return dbError("failed to revoke subscription", err)
		}
		revoked = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription revoked",
		logger.AccountID(revoked.AccountID),
		logger.SubscriptionID(revoked.ID),
	)
	return revoked, nil
}

// History returns every subscription of the account, newest first.
func (s *Service) History(ctx context.Context, accountID string) ([]*Subscription, error) {
	if accountID == "" {
		return nil, ErrAccountRequired
	}
	return s.evaluatedForAccount(ctx, accountID, s.now())
}

// SweepExpired persists time-driven transitions for all live subscriptions
// and returns how many changed.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.store.ListSubscriptionsByStatus(ctx, StatusActive, StatusGracePeriod)
	if err != nil {
		return 0, dbError("failed to list live subscriptions", err)
	}

	changed := 0
	for _, sub := range subs {
		ok, err := s.refresh(ctx, sub, now)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// ListExpiring returns ACTIVE subscriptions whose end date falls within the
// next window.
func (s *Service) ListExpiring(ctx context.Context, now time.Time, within time.Duration) ([]*Subscription, error) {
	subs, err := s.store.ListSubscriptionsByStatus(ctx, StatusActive)
	if err != nil {
		return nil, dbError("failed to list active subscriptions", err)
	}

	limit := now.Add(within)
	out := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		if EvaluateExpiry(sub, now) != StatusActive {
			continue
		}
		if !sub.EndDate.After(limit) {
			out = append(out, sub)
		}
	}
	return out, nil
}

// ListInGrace returns subscriptions whose end date passed less than the grace
// period ago.
func (s *Service) ListInGrace(ctx context.Context, now time.Time) ([]*Subscription, error) {
	subs, err := s.store.ListSubscriptionsByStatus(ctx, StatusActive, StatusGracePeriod)
	if err != nil {
		return nil, dbError("failed to list live subscriptions", err)
	}

	out := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		if EvaluateExpiry(sub, now) == StatusGracePeriod {
			sub.Status = StatusGracePeriod
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Service) price(plan Plan) (Price, error) {
	if !plan.Valid() {
		return Price{}, ErrInvalidPlan.WithMessage("unknown plan " + string(plan))
	}
	return s.catalog.Price(plan)
}

func (s *Service) evaluatedForAccount(ctx context.Context, accountID string, now time.Time) ([]*Subscription, error) {
	subs, err := s.store.ListSubscriptionsByAccount(ctx, accountID)
	if err != nil {
		return nil, dbError("failed to list subscriptions", err)
	}
	for _, sub := range subs {
		if _, err := s.refresh(ctx, sub, now); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (s *Service) lockAndEvaluate(ctx context.Context, accountID string, now time.Time) ([]*Subscription, error) {
	if err := s.store.LockAccount(ctx, accountID); err != nil {
		return nil, dbError("failed to lock account", err)
	}
	return s.evaluatedForAccount(ctx, accountID, now)
}

// refresh persists the evaluated status of sub and reports whether it changed.
func (s *Service) refresh(ctx context.Context, sub *Subscription, now time.Time) (bool, error) {
	next := EvaluateExpiry(sub, now)
	if next == sub.Status {
		return false, nil
	}

	prev := sub.Status
	sub.Status = next
	sub.UpdatedAt = now
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return false, dbError("failed to update subscription status", err)
	}

	s.logger.InfoContext(ctx, "subscription status changed",
		logger.AccountID(sub.AccountID),
		logger.SubscriptionID(sub.ID),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	)
	return true, nil
}

func (s *Service) cancel(ctx context.Context, sub *Subscription, now time.Time) error {
	sub.Status = StatusCancelled
	sub.AutoRenew = false
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return dbError("failed to cancel subscription", err)
	}
	return nil
}

func (s *Service) expireGrace(ctx context.Context, subs []*Subscription, now time.Time) error {
	for _, sub := range subs {
		if sub.Status != StatusGracePeriod {
			continue
		}
		sub.Status = StatusExpired
		sub.UpdatedAt = now
		if err := s.store.UpdateSubscription(ctx, sub); err != nil {
			return dbError("failed to expire superseded subscription", err)
		}
	}
	return nil
}

func (s *Service) insert(ctx context.Context, sub *Subscription) error {
	err := s.store.CreateSubscription(ctx, sub)
	if errors.Is(err, ErrConflict) {
		if sub.PaymentID != "" {
			return ErrAlreadyLinked
		}
		return ErrAlreadyActive
	}
	if err != nil {
		return dbError("failed to create subscription", err)
	}
	return nil
}

func newSubscription(accountID string, plan Plan, price Price, paymentID string, now time.Time) *Subscription {
	return &Subscription{
		ID:        uuid.New(),
		AccountID: accountID,
		Plan:      plan,
		Status:    StatusActive,
		StartDate: now,
		EndDate:   now.Add(plan.Duration()),
		Amount:    price.Amount,
		Currency:  price.Currency,
		AutoRenew: true,
		PaymentID: paymentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func find(subs []*Subscription, status Status) *Subscription {
	for _, sub := range subs {
		if sub.Status == status {
			return sub
		}
	}
	return nil
}

// current picks the governing subscription from a newest-first list.
func current(subs []*Subscription, now time.Time) *Subscription {
	if sub := find(subs, StatusActive); sub != nil {
		return sub
	}
	if sub := find(subs, StatusGracePeriod); sub != nil {
		return sub
	}
	for _, sub := range subs {
		if sub.PaidThrough(now) {
			return sub
		}
	}
	if len(subs) > 0 {
		return subs[0]
	}
	return nil
}
