package payment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/practicebilling/pkg/gateway"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/pkg/validator"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// Subscriptions is what the payment service needs from the subscription
// state machine.
type Subscriptions interface {
	Catalog() subscription.Catalog
	ActivateForPayment(ctx context.Context, p subscription.ActivateParams) (*subscription.Subscription, error)
	Revoke(ctx context.Context, id uuid.UUID, now time.Time) (*subscription.Subscription, error)
}

// Service creates gateway orders, verifies checkout payments and applies
// gateway events. It is the only writer of transaction status.
type Service struct {
	cfg    Config
	gw     gateway.Client
	subs   Subscriptions
	store  TransactionStore
	tx     subscription.Transactor
	now    func() time.Time
	logger *slog.Logger
}

// NewService panics if any dependency is nil.
func NewService(cfg Config, gw gateway.Client, subs Subscriptions, store TransactionStore, tx subscription.Transactor, opts ...Option) *Service {
	switch {
	case gw == nil:
		panic("payment: gateway client is required")
	case subs == nil:
		panic("payment: subscription service is required")
	case store == nil:
		panic("payment: TransactionStore is required")
	case tx == nil:
		panic("payment: Transactor is required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.ReceiptPrefix == "" {
		cfg.ReceiptPrefix = "rcpt"
	}

	s := &Service{
		cfg:    cfg,
		gw:     gw,
		subs:   subs,
		store:  store,
		tx:     tx,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("payment"))
	return s
}

// CustomerInfo is optional contact data forwarded to the gateway.
type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (c CustomerInfo) validate() error {
	return validator.Apply(
		validator.MaxLen("customer.name", c.Name, 120),
		validator.When(c.Email != "", validator.Email("customer.email", c.Email)),
		validator.When(c.Phone != "", validator.Phone("customer.phone", c.Phone)),
	)
}

// OrderResult is what the client needs to open checkout.
type OrderResult struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// CreateOrder opens a gateway order for plan and records it as PENDING.
func (s *Service) CreateOrder(ctx context.Context, accountID string, plan subscription.Plan, customer CustomerInfo) (*OrderResult, error) {
	if accountID == "" {
		return nil, subscription.ErrAccountRequired
	}
	if !plan.Valid() {
		return nil, subscription.ErrInvalidPlan.WithMessage("unknown plan " + string(plan))
	}
	if err := customer.validate(); err != nil {
		return nil, ErrInvalidCustomer.WithCause(err)
	}
	price, err := s.subs.Catalog().Price(plan)
	if err != nil {
		return nil, err
	}

	notes := map[string]string{"account_id": accountID, "plan": string(plan)}
	if customer.Email != "" {
		notes["email"] = customer.Email
	}
	if customer.Name != "" {
		notes["name"] = customer.Name
	}
	if customer.Phone != "" {
		notes["contact"] = customer.Phone
	}

	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   price.Amount,
		Currency: price.Currency,
		Receipt:  s.receipt(),
		Notes:    notes,
	})
	if err != nil {
		err = gateway.ClassifyError(err)
		s.logger.WarnContext(ctx, "gateway order creation failed",
			logger.AccountID(accountID),
			logger.Error(err),
		)
		return nil, err
	}

	now := s.now()
	txn := &Transaction{
		ID:             uuid.New(),
		AccountID:      accountID,
		Plan:           plan,
		GatewayOrderID: order.ID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, dbError("failed to record transaction", err)
	}

	s.logger.InfoContext(ctx, "order created",
		logger.AccountID(accountID),
		logger.OrderID(order.ID),
		slog.String("plan", string(plan)),
		slog.Int64("amount", order.Amount),
	)

	return &OrderResult{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.cfg.KeyID,
	}, nil
}

// VerifyRequest is the checkout callback posted by the client. AccountID is
// the authenticated caller and never comes from the request body.
type VerifyRequest struct {
	AccountID string `json:"-"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// VerifyResult reports the outcome of a checkout verification.
type VerifyResult struct {
	Success        bool       `json:"success"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// VerifyPayment confirms a checkout payment and activates the subscription.
// A result is returned alongside errors that still describe an outcome
// (duplicate, bad signature), so callers can render it.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if req.AccountID == "" {
		return nil, subscription.ErrAccountRequired
	}
	if err := validator.Apply(
		validator.Required("order_id", req.OrderID),
		validator.Required("payment_id", req.PaymentID),
		validator.Required("signature", req.Signature),
	); err != nil {
		return nil, ErrInvalidRequest.WithCause(err)
	}

	log := s.logger.With(logger.OrderID(req.OrderID), logger.PaymentID(req.PaymentID))

	txn, err := s.store.GetTransactionByOrderID(ctx, req.OrderID)
	if errors.Is(err, subscription.ErrNotFound) {
		return nil, ErrOrderNotFound.WithMessage("order " + req.OrderID + " not found")
	}
	if err != nil {
		return nil, dbError("failed to load transaction", err)
	}
	// Foreign orders look exactly like missing ones.
	if txn.AccountID != req.AccountID {
		log.WarnContext(ctx, "order verification by another account", logger.AccountID(req.AccountID))
		return nil, ErrOrderNotFound.WithMessage("order " + req.OrderID + " not found")
	}
	log = log.With(logger.AccountID(txn.AccountID))

	if !gateway.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature, s.cfg.KeySecret) {
		if txn.Status == StatusPending {
			if err := s.markFailed(ctx, txn, "invalid signature"); err != nil {
				return nil, err
			}
		}
		log.WarnContext(ctx, "payment signature mismatch")
		return &VerifyResult{Reason: "invalid signature"}, ErrInvalidSignature
	}

	if txn.Status == StatusSuccess || txn.Status == StatusRefunded {
		log.InfoContext(ctx, "duplicate payment verification")
		return &VerifyResult{SubscriptionID: txn.SubscriptionID, Reason: "payment already processed"}, ErrAlreadyProcessed
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	p, err := s.gw.FetchPayment(fetchCtx, req.PaymentID)
	cancel()
	if err != nil {
		err = gateway.ClassifyError(err)
		log.WarnContext(ctx, "failed to fetch payment", logger.Error(err))
		return nil, err
	}
	if p.OrderID != "" && p.OrderID != req.OrderID {
		return nil, ErrOrderMismatch.WithMessage("payment " + p.ID + " belongs to order " + p.OrderID)
	}

	switch {
	case p.Completed():
	case p.Status == gateway.PaymentFailed:
		reason := failureReason(p)
		if txn.Status == StatusPending {
			if err := s.markFailed(ctx, txn, reason); err != nil {
				return nil, err
			}
		}
		log.InfoContext(ctx, "payment failed at gateway", slog.String("reason", reason))
		return &VerifyResult{Reason: reason}, nil
	default:
		return nil, ErrPaymentNotCompleted.WithMessage("payment " + p.ID + " is " + p.Status)
	}

	sub, err := s.complete(ctx, txn.GatewayOrderID, p)
	if errors.Is(err, ErrAlreadyProcessed) {
		res := &VerifyResult{Reason: "payment already processed"}
		if sub != nil {
			res.SubscriptionID = &sub.ID
		}
		return res, err
	}
	if err != nil {
		return nil, err
	}

	return &VerifyResult{Success: true, SubscriptionID: &sub.ID}, nil
}

// Transactions returns the account's payment history, newest first.
func (s *Service) Transactions(ctx context.Context, accountID string) ([]*Transaction, error) {
	if accountID == "" {
		return nil, subscription.ErrAccountRequired
	}
	txns, err := s.store.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, dbError("failed to list transactions", err)
	}
	return txns, nil
}

// complete activates the subscription bought by p and marks the order's
// transaction SUCCESS in one unit of work. On a duplicate it returns the
// already linked subscription, if any, with ErrAlreadyProcessed.
func (s *Service) complete(ctx context.Context, orderID string, p *gateway.Payment) (*subscription.Subscription, error) {
	var (
		activated *subscription.Subscription
		txn       *Transaction
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		txn, err = s.store.GetTransactionByOrderID(ctx, orderID)
		if err != nil {
			return dbError("failed to load transaction", err)
		}
		if err := s.store.LockAccount(ctx, txn.AccountID); err != nil {
			return dbError("failed to lock account", err)
		}
		if txn, err = s.store.GetTransactionByOrderID(ctx, orderID); err != nil {
			return dbError("failed to reload transaction", err)
		}

		switch txn.Status {
		case StatusSuccess, StatusRefunded:
			return ErrAlreadyProcessed
		case StatusFailed:
			return ErrTransactionClosed.WithMessage("transaction for order " + orderID + " already failed")
		}

		sub, err := s.subs.ActivateForPayment(ctx, subscription.ActivateParams{
			AccountID: txn.AccountID,
			Plan:      txn.Plan,
			PaymentID: p.ID,
			Amount:    txn.Amount,
			Currency:  txn.Currency,
		})
		if err != nil {
			activated = sub
			return err
		}

		txn.Status = StatusSuccess
		txn.GatewayPaymentID = p.ID
		txn.SubscriptionID = &sub.ID
		txn.FailureReason = ""
		txn.UpdatedAt = s.now()
		if err := s.store.UpdateTransaction(ctx, txn); err != nil {
			return dbError("failed to mark transaction successful", err)
		}
		activated = sub
		return nil
	})

	log := s.logger.With(logger.OrderID(orderID), logger.PaymentID(p.ID))
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		log.InfoContext(ctx, "payment already processed")
		return activated, err
	case err != nil:
		log.ErrorContext(ctx, "payment completion failed", logger.Error(err))
		return nil, err
	}

	log.InfoContext(ctx, "payment completed",
		logger.AccountID(txn.AccountID),
		logger.SubscriptionID(activated.ID),
	)
	return activated, nil
}

func (s *Service) markFailed(ctx context.Context, txn *Transaction, reason string) error {
	if !txn.Status.CanTransitionTo(StatusFailed) {
		return nil
	}
	txn.Status = StatusFailed
	txn.FailureReason = reason
	txn.UpdatedAt = s.now()
	if err := s.store.UpdateTransaction(ctx, txn); err != nil {
		return dbError("failed to mark transaction failed", err)
	}
	return nil
}

func (s *Service) receipt() string {
	return s.cfg.ReceiptPrefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func failureReason(p *gateway.Payment) string {
	if p.ErrorDescription != "" {
		return p.ErrorDescription
	}
	if p.ErrorCode != "" {
		return p.ErrorCode
	}
	return "payment failed"
}
