package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
	"github.com/dmitrymomot/practicebilling/pkg/gateway"
	"github.com/dmitrymomot/practicebilling/svc/payment"
	"github.com/dmitrymomot/practicebilling/svc/store"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

const (
	testKeyID     = "key_test"
	testKeySecret = "checkout-secret"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *payment.Service
	subs  *subscription.Service
	gw    *gateway.MemoryClient
	store *store.Memory
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	gw := gateway.NewMemoryClient()
	c := &clock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	subs := subscription.NewService(st, st, subscription.WithClock(c.Now))
	svc := payment.NewService(
		payment.Config{KeyID: testKeyID, KeySecret: testKeySecret},
		gw, subs, st, st,
		payment.WithClock(c.Now),
	)
	return &fixture{svc: svc, subs: subs, gw: gw, store: st, clock: c}
}

func (f *fixture) order(t *testing.T, accountID string, plan subscription.Plan) *payment.OrderResult {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), accountID, plan, payment.CustomerInfo{Name: "Dr. Rao", Email: "rao@clinic.example.com"})
	require.NoError(t, err)
	return res
}

func verifyRequest(accountID, orderID, paymentID string) payment.VerifyRequest {
	return payment.VerifyRequest{
		AccountID: accountID,
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: gateway.PaymentSignature(orderID, paymentID, testKeySecret),
	}
}

func TestService_CreateOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res := f.order(t, "acc_1", subscription.PlanMonthly)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, int64(99900), res.Amount)
	assert.Equal(t, "INR", res.Currency)
	assert.Equal(t, testKeyID, res.KeyID)

	order, ok := f.gw.Order(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, "acc_1", order.Notes["account_id"])
	assert.Equal(t, "MONTHLY", order.Notes["plan"])
	assert.Equal(t, "rao@clinic.example.com", order.Notes["email"])

	txn, err := f.store.GetTransactionByOrderID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, txn.Status)
	assert.Equal(t, subscription.PlanMonthly, txn.Plan)
	assert.Equal(t, "acc_1", txn.AccountID)
}

func TestService_CreateOrder_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.CreateOrder(ctx, "", subscription.PlanMonthly, payment.CustomerInfo{})
		assert.ErrorIs(t, err, subscription.ErrAccountRequired)

		_, err = f.svc.CreateOrder(ctx, "acc_1", "WEEKLY", payment.CustomerInfo{})
		assert.ErrorIs(t, err, subscription.ErrInvalidPlan)

		_, err = f.svc.CreateOrder(ctx, "acc_1", subscription.PlanMonthly, payment.CustomerInfo{Email: "not-an-email"})
		assert.ErrorIs(t, err, payment.ErrInvalidCustomer)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("gateway unavailable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.gw.FailNext(gateway.ErrUnavailable)

		_, err := f.svc.CreateOrder(ctx, "acc_1", subscription.PlanYearly, payment.CustomerInfo{})
		assert.ErrorIs(t, err, gateway.ErrUnavailable)
		assert.True(t, apperr.IsRetryable(err))

		txns, err := f.svc.Transactions(ctx, "acc_1")
		require.NoError(t, err)
		assert.Empty(t, txns)
	})
}

func TestService_VerifyPayment_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	order := f.order(t, "acc_1", subscription.PlanYearly)
	pay := f.gw.Pay(order.OrderID, gateway.PaymentCaptured)

	res, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", order.OrderID, pay.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.SubscriptionID)

	view, err := f.subs.Status(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, view.Status)
	assert.Equal(t, *res.SubscriptionID, view.Subscription.ID)
	assert.Equal(t, subscription.PlanYearly, view.Subscription.Plan)
	assert.Equal(t, pay.ID, view.Subscription.PaymentID)
	assert.Equal(t, f.clock.Now().Add(365*24*time.Hour), view.Subscription.EndDate)

	txn, err := f.store.GetTransactionByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, txn.Status)
	assert.Equal(t, pay.ID, txn.GatewayPaymentID)
	require.NotNil(t, txn.SubscriptionID)
	assert.Equal(t, *res.SubscriptionID, *txn.SubscriptionID)

	dup, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", order.OrderID, pay.ID))
	assert.ErrorIs(t, err, payment.ErrAlreadyProcessed)
	assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))
	assert.False(t, apperr.IsRetryable(err))
	require.NotNil(t, dup)
	assert.False(t, dup.Success)
	require.NotNil(t, dup.SubscriptionID)
	assert.Equal(t, *res.SubscriptionID, *dup.SubscriptionID)

	history, err := f.subs.History(ctx, "acc_1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestService_VerifyPayment_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("invalid signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order := f.order(t, "acc_1", subscription.PlanMonthly)
		pay := f.gw.Pay(order.OrderID, gateway.PaymentCaptured)

		req := verifyRequest("acc_1", order.OrderID, pay.ID)
		req.Signature = gateway.PaymentSignature(order.OrderID, pay.ID, "wrong-secret")

		res, err := f.svc.VerifyPayment(ctx, req)
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
		assert.Equal(t, apperr.KindSignature, apperr.KindOf(err))
		require.NotNil(t, res)
		assert.False(t, res.Success)

		txn, err := f.store.GetTransactionByOrderID(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusFailed, txn.Status)
		assert.Equal(t, "invalid signature", txn.FailureReason)

		view, err := f.subs.Status(ctx, "acc_1")
		require.NoError(t, err)
		assert.Nil(t, view.Subscription)
	})

	t.Run("payment failed at gateway", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order := f.order(t, "acc_1", subscription.PlanMonthly)
		pay := f.gw.Pay(order.OrderID, gateway.PaymentFailed)

		res, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", order.OrderID, pay.ID))
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Payment was declined by the bank", res.Reason)

		txn, err := f.store.GetTransactionByOrderID(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusFailed, txn.Status)
		assert.Equal(t, "Payment was declined by the bank", txn.FailureReason)
	})

	t.Run("payment not completed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order := f.order(t, "acc_1", subscription.PlanMonthly)
		pay := f.gw.Pay(order.OrderID, gateway.PaymentCreated)

		_, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", order.OrderID, pay.ID))
		assert.ErrorIs(t, err, payment.ErrPaymentNotCompleted)

		txn, err := f.store.GetTransactionByOrderID(ctx, order.OrderID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, txn.Status)
	})

	t.Run("gateway timeout is retryable and leaves transaction pending", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		order := f.order(t, "acc_1", subscription.PlanMonthly)
		pay := f.gw.Pay(order.OrderID, gateway.PaymentCaptured)
		f.gw.FailNext(gateway.ErrTimeout)

		_, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", order.OrderID, pay.ID))
		assert.ErrorIs(t, err, gateway.ErrTimeout)
		assert.True(t, apperr.IsRetryable(err))

		res, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", order.OrderID, pay.ID))
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("payment of another order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		first := f.order(t, "acc_1", subscription.PlanMonthly)
		second := f.order(t, "acc_1", subscription.PlanMonthly)
		pay := f.gw.Pay(second.OrderID, gateway.PaymentCaptured)

		_, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", first.OrderID, pay.ID))
		assert.ErrorIs(t, err, payment.ErrOrderMismatch)
	})

	t.Run("unknown order and missing fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", "order_missing", "pay_1"))
		assert.ErrorIs(t, err, payment.ErrOrderNotFound)

		_, err = f.svc.VerifyPayment(ctx, payment.VerifyRequest{AccountID: "acc_1", OrderID: "order_1"})
		assert.ErrorIs(t, err, payment.ErrInvalidRequest)

		_, err = f.svc.VerifyPayment(ctx, payment.VerifyRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: "x"})
		assert.ErrorIs(t, err, subscription.ErrAccountRequired)
	})
}

func TestService_VerifyPayment_ForeignAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	order := f.order(t, "acc_owner", subscription.PlanMonthly)
	pay := f.gw.Pay(order.OrderID, gateway.PaymentCaptured)

	tests := []struct {
		name string
		req  payment.VerifyRequest
	}{
		{"junk signature", payment.VerifyRequest{AccountID: "acc_other", OrderID: order.OrderID, PaymentID: pay.ID, Signature: "deadbeef"}},
		{"valid signature", verifyRequest("acc_other", order.OrderID, pay.ID)},
	}
	for _, tt := range tests {
		res, err := f.svc.VerifyPayment(ctx, tt.req)
		assert.ErrorIs(t, err, payment.ErrOrderNotFound, tt.name)
		assert.Nil(t, res, tt.name)
	}

	txn, err := f.store.GetTransactionByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, txn.Status)
	assert.Empty(t, txn.FailureReason)

	view, err := f.subs.Status(ctx, "acc_other")
	require.NoError(t, err)
	assert.Nil(t, view.Subscription)

	res, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_owner", order.OrderID, pay.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.SubscriptionID)
}

func TestService_VerifyPayment_UnsignedReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	order := f.order(t, "acc_1", subscription.PlanMonthly)
	pay := f.gw.Pay(order.OrderID, gateway.PaymentCaptured)
	_, err := f.svc.VerifyPayment(ctx, verifyRequest("acc_1", order.OrderID, pay.ID))
	require.NoError(t, err)

	res, err := f.svc.VerifyPayment(ctx, payment.VerifyRequest{
		AccountID: "acc_1",
		OrderID:   order.OrderID,
		PaymentID: "anything",
		Signature: "garbage",
	})
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.NotErrorIs(t, err, payment.ErrAlreadyProcessed)
	require.NotNil(t, res)
	assert.Nil(t, res.SubscriptionID)

	txn, err := f.store.GetTransactionByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, txn.Status)
}

func TestService_Transactions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first := f.order(t, "acc_1", subscription.PlanMonthly)
	f.clock.Advance(time.Minute)
	second := f.order(t, "acc_1", subscription.PlanYearly)
	f.order(t, "acc_2", subscription.PlanYearly)

	txns, err := f.svc.Transactions(ctx, "acc_1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, second.OrderID, txns[0].GatewayOrderID)
	assert.Equal(t, first.OrderID, txns[1].GatewayOrderID)

	_, err = f.svc.Transactions(ctx, "")
	assert.ErrorIs(t, err, subscription.ErrAccountRequired)
}

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	assert.True(t, payment.StatusPending.CanTransitionTo(payment.StatusSuccess))
	assert.True(t, payment.StatusPending.CanTransitionTo(payment.StatusFailed))
	assert.True(t, payment.StatusSuccess.CanTransitionTo(payment.StatusRefunded))
	assert.False(t, payment.StatusSuccess.CanTransitionTo(payment.StatusFailed))
	assert.False(t, payment.StatusFailed.CanTransitionTo(payment.StatusSuccess))
	assert.False(t, payment.StatusRefunded.CanTransitionTo(payment.StatusSuccess))
}
