package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/practicebilling/pkg/gateway"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// HandleEvent applies a gateway event. It reports false for events the
// engine does not act on.
func (s *Service) HandleEvent(ctx context.Context, ev *Event) (bool, error) {
	switch ev.Event {
	case EventPaymentAuthorized, EventPaymentCaptured, EventOrderPaid:
		return true, s.handlePaid(ctx, ev)
	case EventPaymentFailed:
		return true, s.handleFailed(ctx, ev)
	case EventRefundCreated:
		s.logger.InfoContext(ctx, "refund created", slog.String("refund_id", refundID(ev)), logger.PaymentID(refundPaymentID(ev)))
		return true, nil
	case EventRefundProcessed:
		return true, s.handleRefund(ctx, ev)
	default:
		s.logger.DebugContext(ctx, "ignoring unrecognized event", logger.Event(ev.Event))
		return false, nil
	}
}

func (s *Service) handlePaid(ctx context.Context, ev *Event) error {
	p := ev.Payment()
	if p == nil {
		return ErrMalformedEvent.WithMessage(ev.Event + " without payment entity")
	}
	switch {
	case p.Status == "" && ev.Event == EventPaymentAuthorized:
		p.Status = gateway.PaymentAuthorized
	case p.Status == "":
		p.Status = gateway.PaymentCaptured
	}
	if !p.Completed() {
		return ErrPaymentNotCompleted.WithMessage("payment " + p.ID + " is " + p.Status)
	}

	orderID := p.OrderID
	if o := ev.Order(); o != nil {
		orderID = o.ID
	}
	if orderID == "" {
		return ErrMalformedEvent.WithMessage("payment " + p.ID + " has no order")
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ensureTransaction(ctx, orderID, ev, p); err != nil {
			return err
		}
		_, err := s.complete(ctx, orderID, p)
		return err
	})
}

// ensureTransaction records a PENDING transaction for orders that were
// created outside this service, using the order notes.
func (s *Service) ensureTransaction(ctx context.Context, orderID string, ev *Event, p *gateway.Payment) error {
	_, err := s.store.GetTransactionByOrderID(ctx, orderID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, subscription.ErrNotFound) {
		return dbError("failed to load transaction", err)
	}

	notes := p.Notes
	amount, currency := p.Amount, p.Currency
	if o := ev.Order(); o != nil {
		if len(o.Notes) > 0 {
			notes = o.Notes
		}
		amount, currency = o.Amount, o.Currency
	}
	plan, perr := subscription.ParsePlan(notes["plan"])
	if notes["account_id"] == "" || perr != nil {
		return ErrOrderNotFound.WithMessage("order " + orderID + " is unknown and carries no account or plan notes")
	}

	now := s.now()
	txn := &Transaction{
		ID:             uuid.New(),
		AccountID:      notes["account_id"],
		Plan:           plan,
		GatewayOrderID: orderID,
		Amount:         amount,
		Currency:       currency,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil && !errors.Is(err, subscription.ErrConflict) {
		return dbError("failed to record transaction", err)
	}
	s.logger.InfoContext(ctx, "transaction recorded from event",
		logger.AccountID(txn.AccountID),
		logger.OrderID(orderID),
	)
	return nil
}

func (s *Service) handleFailed(ctx context.Context, ev *Event) error {
	p := ev.Payment()
	if p == nil || p.OrderID == "" {
		return ErrMalformedEvent.WithMessage("payment.failed without payment or order id")
	}

	txn, err := s.store.GetTransactionByOrderID(ctx, p.OrderID)
	if errors.Is(err, subscription.ErrNotFound) {
		s.logger.InfoContext(ctx, "failed payment for unknown order", logger.OrderID(p.OrderID), logger.PaymentID(p.ID))
		return nil
	}
	if err != nil {
		return dbError("failed to load transaction", err)
	}

	if txn.Status != StatusPending {
		s.logger.InfoContext(ctx, "ignoring failure for settled transaction",
			logger.OrderID(p.OrderID),
			slog.String("status", string(txn.Status)),
		)
		return nil
	}
	txn.GatewayPaymentID = p.ID
	if err := s.markFailed(ctx, txn, failureReason(p)); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "payment failed",
		logger.AccountID(txn.AccountID),
		logger.OrderID(p.OrderID),
		logger.PaymentID(p.ID),
	)
	return nil
}

// handleRefund moves SUCCESS to REFUNDED and revokes the linked
// subscription atomically. A repeated refund event is a no-op.
func (s *Service) handleRefund(ctx context.Context, ev *Event) error {
	paymentID := refundPaymentID(ev)
	if paymentID == "" {
		return ErrMalformedEvent.WithMessage("refund.processed without payment id")
	}

	var refunded *Transaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		txn, err := s.store.GetTransactionByPaymentID(ctx, paymentID)
		if errors.Is(err, subscription.ErrNotFound) {
			return ErrTransactionNotFound.WithMessage("no transaction for payment " + paymentID)
		}
		if err != nil {
			return dbError("failed to load transaction", err)
		}
		if err := s.store.LockAccount(ctx, txn.AccountID); err != nil {
			return dbError("failed to lock account", err)
		}

		if txn.Status == StatusRefunded {
			return nil
		}
		if !txn.Status.CanTransitionTo(StatusRefunded) {
			return ErrInvalidTransition.WithMessage("cannot refund " + string(txn.Status) + " transaction for payment " + paymentID)
		}

		now := s.now()
		txn.Status = StatusRefunded
		txn.UpdatedAt = now
		if err := s.store.UpdateTransaction(ctx, txn); err != nil {
			return dbError("failed to mark transaction refunded", err)
		}
		if txn.SubscriptionID != nil {
			if _, err := s.subs.Revoke(ctx, *txn.SubscriptionID, now); err != nil {
				return err
			}
		}
		refunded = txn
		return nil
	})
	if err != nil {
		return err
	}

	if refunded != nil {
		attrs := []any{logger.AccountID(refunded.AccountID), logger.PaymentID(paymentID), slog.String("refund_id", refundID(ev))}
		if refunded.SubscriptionID != nil {
			attrs = append(attrs, logger.SubscriptionID(*refunded.SubscriptionID))
		}
		s.logger.InfoContext(ctx, "payment refunded", attrs...)
	}
	return nil
}

func refundPaymentID(ev *Event) string {
	if r := ev.Refund(); r != nil && r.PaymentID != "" {
		return r.PaymentID
	}
	if p := ev.Payment(); p != nil {
		return p.ID
	}
	return ""
}

func refundID(ev *Event) string {
	if r := ev.Refund(); r != nil {
		return r.ID
	}
	return ""
}
