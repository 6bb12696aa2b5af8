package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
	"github.com/dmitrymomot/practicebilling/svc/store"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T) (*subscription.Service, *store.Memory, *testClock) {
	t.Helper()
	st := store.NewMemory()
	clock := newTestClock()
	return subscription.NewService(st, st, subscription.WithClock(clock.Now)), st, clock
}

const day = 24 * time.Hour

func TestService_Create(t *testing.T) {
	t.Parallel()

	t.Run("monthly", func(t *testing.T) {
		t.Parallel()
		svc, _, clock := newService(t)

		sub, err := svc.Create(context.Background(), "acc_1", subscription.PlanMonthly)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, clock.Now(), sub.StartDate)
		assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), sub.EndDate)
		assert.Equal(t, int64(99900), sub.Amount)
		assert.Equal(t, "INR", sub.Currency)
		assert.True(t, sub.AutoRenew)
	})

	t.Run("rejects second active", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)
		ctx := context.Background()

		_, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
		require.NoError(t, err)

		_, err = svc.Create(ctx, "acc_1", subscription.PlanYearly)
		assert.ErrorIs(t, err, subscription.ErrAlreadyActive)
		assert.Equal(t, apperr.KindBusinessRule, apperr.KindOf(err))
	})

	t.Run("supersedes grace", func(t *testing.T) {
		t.Parallel()
		svc, st, clock := newService(t)
		ctx := context.Background()

		old, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
		require.NoError(t, err)

		clock.Advance(31 * day)
		view, err := svc.Status(ctx, "acc_1")
		require.NoError(t, err)
		require.Equal(t, subscription.StatusGracePeriod, view.Status)

		fresh, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
		require.NoError(t, err)
		assert.Equal(t, clock.Now(), fresh.StartDate)

		prev, err := st.GetSubscription(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, prev.Status)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.Create(context.Background(), "", subscription.PlanMonthly)
		assert.ErrorIs(t, err, subscription.ErrAccountRequired)

		_, err = svc.Create(context.Background(), "acc_1", "WEEKLY")
		assert.ErrorIs(t, err, subscription.ErrInvalidPlan)
	})
}

func TestService_Status(t *testing.T) {
	t.Parallel()

	t.Run("never subscribed", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		view, err := svc.Status(context.Background(), "acc_new")
		require.NoError(t, err)
		assert.Nil(t, view.Subscription)
		assert.False(t, view.Entitled)
	})

	t.Run("lifecycle", func(t *testing.T) {
		t.Parallel()
		svc, _, clock := newService(t)
		ctx := context.Background()

		_, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
		require.NoError(t, err)

		clock.Advance(27 * day)
		view, err := svc.Status(ctx, "acc_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, view.Status)
		assert.Equal(t, 3, view.DaysRemaining)
		assert.True(t, view.Entitled)
		assert.Nil(t, view.GraceEndsAt)

		clock.Advance(4 * day)
		view, err = svc.Status(ctx, "acc_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusGracePeriod, view.Status)
		assert.True(t, view.Entitled)
		require.NotNil(t, view.GraceEndsAt)
		assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), *view.GraceEndsAt)

		clock.Advance(3 * day)
		view, err = svc.Status(ctx, "acc_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, view.Status)
		assert.False(t, view.Entitled)
	})
}

func TestService_ActivateForPayment(t *testing.T) {
	t.Parallel()

	t.Run("idempotent per payment", func(t *testing.T) {
		t.Parallel()
		svc, st, _ := newService(t)
		ctx := context.Background()
		params := subscription.ActivateParams{AccountID: "acc_1", Plan: subscription.PlanYearly, PaymentID: "pay_1", Amount: 120000, Currency: "INR"}

		first, err := svc.ActivateForPayment(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "pay_1", first.PaymentID)
		assert.Equal(t, int64(120000), first.Amount)

		again, err := svc.ActivateForPayment(ctx, params)
		assert.ErrorIs(t, err, subscription.ErrAlreadyLinked)
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID)

		all, err := st.ListSubscriptionsByAccount(ctx, "acc_1")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("replaces active", func(t *testing.T) {
		t.Parallel()
		svc, st, clock := newService(t)
		ctx := context.Background()

		old, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
		require.NoError(t, err)

		clock.Advance(10 * day)
		renewed, err := svc.ActivateForPayment(ctx, subscription.ActivateParams{AccountID: "acc_1", Plan: subscription.PlanMonthly, PaymentID: "pay_2"})
		require.NoError(t, err)
		assert.Equal(t, clock.Now(), renewed.StartDate)
		assert.Equal(t, clock.Now().Add(30*day), renewed.EndDate)

		prev, err := st.GetSubscription(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, prev.Status)
		assert.False(t, prev.AutoRenew)

		cur, err := svc.Current(ctx, "acc_1")
		require.NoError(t, err)
		assert.Equal(t, renewed.ID, cur.ID)
	})
}

func TestService_Upgrade(t *testing.T) {
	t.Parallel()

	t.Run("monthly to yearly", func(t *testing.T) {
		t.Parallel()
		svc, st, clock := newService(t)
		ctx := context.Background()

		old, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
		require.NoError(t, err)

		clock.Advance(5 * day)
		up, err := svc.Upgrade(ctx, "acc_1", subscription.PlanYearly)
		require.NoError(t, err)
		assert.Equal(t, subscription.PlanYearly, up.Plan)
		assert.Equal(t, clock.Now(), up.StartDate)
		assert.Equal(t, clock.Now().Add(365*day), up.EndDate)

		prev, err := st.GetSubscription(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCancelled, prev.Status)
		require.NotNil(t, prev.CancelledAt)
	})

	t.Run("without active", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.Upgrade(context.Background(), "acc_1", subscription.PlanYearly)
		assert.ErrorIs(t, err, subscription.ErrNoActiveSubscription)
	})

	t.Run("same plan", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)
		ctx := context.Background()

		_, err := svc.Create(ctx, "acc_1", subscription.PlanYearly)
		require.NoError(t, err)

		_, err = svc.Upgrade(ctx, "acc_1", subscription.PlanYearly)
		assert.ErrorIs(t, err, subscription.ErrSamePlan)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	svc, _, clock := newService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
	require.NoError(t, err)

	clock.Advance(2 * day)
	cancelled, err := svc.Cancel(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, cancelled.ID)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	assert.Equal(t, sub.EndDate, cancelled.EndDate)

	view, err := svc.Status(ctx, "acc_1")
	require.NoError(t, err)
	assert.True(t, view.Entitled, "paid period continues after cancel")

	_, err = svc.Cancel(ctx, "acc_1")
	assert.ErrorIs(t, err, subscription.ErrNoActiveSubscription)

	clock.Advance(30 * day)
	view, err = svc.Status(ctx, "acc_1")
	require.NoError(t, err)
	assert.False(t, view.Entitled)
}

func TestService_Revoke(t *testing.T) {
	t.Parallel()

	svc, _, clock := newService(t)
	ctx := context.Background()

	sub, err := svc.ActivateForPayment(ctx, subscription.ActivateParams{AccountID: "acc_1", Plan: subscription.PlanMonthly, PaymentID: "pay_1"})
	require.NoError(t, err)

	clock.Advance(day)
	now := clock.Now()
	revoked, err := svc.Revoke(ctx, sub.ID, now)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, revoked.Status)
	assert.Equal(t, now, revoked.EndDate)

	view, err := svc.Status(ctx, "acc_1")
	require.NoError(t, err)
	assert.False(t, view.Entitled)

	again, err := svc.Revoke(ctx, sub.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, now, again.EndDate)

	_, err = svc.Revoke(ctx, uuid.New(), now)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}

func TestService_History(t *testing.T) {
	t.Parallel()

	svc, _, clock := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "acc_1", subscription.PlanMonthly)
	require.NoError(t, err)
	clock.Advance(day)
	second, err := svc.Upgrade(ctx, "acc_1", subscription.PlanYearly)
	require.NoError(t, err)

	subs, err := svc.History(ctx, "acc_1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, second.ID, subs[0].ID)
	assert.Equal(t, first.ID, subs[1].ID)

	empty, err := svc.History(ctx, "acc_2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_SweepExpired(t *testing.T) {
	t.Parallel()

	svc, st, clock := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "acc_a", subscription.PlanMonthly)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "acc_b", subscription.PlanYearly)
	require.NoError(t, err)

	start := clock.Now()

	n, err := svc.SweepExpired(ctx, start.Add(10*day))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.SweepExpired(ctx, start.Add(31*day))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetSubscription(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusGracePeriod, got.Status)

	n, err = svc.SweepExpired(ctx, start.Add(34*day))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = st.GetSubscription(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusExpired, got.Status)
}

func TestService_ListExpiringAndInGrace(t *testing.T) {
	t.Parallel()

	svc, _, clock := newService(t)
	ctx := context.Background()

	monthly, err := svc.Create(ctx, "acc_a", subscription.PlanMonthly)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "acc_b", subscription.PlanYearly)
	require.NoError(t, err)

	start := clock.Now()

	expiring, err := svc.ListExpiring(ctx, start.Add(25*day), 7*day)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, monthly.ID, expiring[0].ID)

	inGrace, err := svc.ListInGrace(ctx, start.Add(31*day))
	require.NoError(t, err)
	require.Len(t, inGrace, 1)
	assert.Equal(t, monthly.ID, inGrace[0].ID)
	assert.Equal(t, subscription.StatusGracePeriod, inGrace[0].Status)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSubscription(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*subscription.Subscription)
	return sub, args.Error(1)
}

func (m *mockStore) GetSubscriptionByPaymentID(ctx context.Context, paymentID string) (*subscription.Subscription, error) {
	args := m.Called(ctx, paymentID)
	sub, _ := args.Get(0).(*subscription.Subscription)
	return sub, args.Error(1)
}

func (m *mockStore) ListSubscriptionsByAccount(ctx context.Context, accountID string) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, accountID)
	subs, _ := args.Get(0).([]*subscription.Subscription)
	return subs, args.Error(1)
}

func (m *mockStore) ListSubscriptionsByStatus(ctx context.Context, statuses ...subscription.Status) ([]*subscription.Subscription, error) {
	args := m.Called(ctx, statuses)
	subs, _ := args.Get(0).([]*subscription.Subscription)
	return subs, args.Error(1)
}

func (m *mockStore) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockStore) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockStore) LockAccount(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func TestService_DatabaseErrors(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("connection refused")

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		st := &mockStore{}
		st.On("ListSubscriptionsByAccount", mock.Anything, "acc_1").Return(nil, dbErr)

		svc := subscription.NewService(st, passthroughTx{})
		_, err := svc.Status(context.Background(), "acc_1")

		require.Error(t, err)
		assert.Equal(t, apperr.KindDatabase, apperr.KindOf(err))
		assert.True(t, apperr.IsRetryable(err))
		assert.ErrorIs(t, err, dbErr)
		st.AssertExpectations(t)
	})

	t.Run("create insert failure", func(t *testing.T) {
		t.Parallel()
		st := &mockStore{}
		st.On("LockAccount", mock.Anything, "acc_1").Return(nil)
		st.On("ListSubscriptionsByAccount", mock.Anything, "acc_1").Return([]*subscription.Subscription{}, nil)
		st.On("CreateSubscription", mock.Anything, mock.AnythingOfType("*subscription.Subscription")).Return(dbErr)

		svc := subscription.NewService(st, passthroughTx{})
		_, err := svc.Create(context.Background(), "acc_1", subscription.PlanMonthly)

		assert.Equal(t, apperr.KindDatabase, apperr.KindOf(err))
		assert.ErrorIs(t, err, dbErr)
		st.AssertExpectations(t)
	})

	t.Run("unique violation maps to business rule", func(t *testing.T) {
		t.Parallel()
		st := &mockStore{}
		st.On("LockAccount", mock.Anything, "acc_1").Return(nil)
		st.On("ListSubscriptionsByAccount", mock.Anything, "acc_1").Return([]*subscription.Subscription{}, nil)
		st.On("CreateSubscription", mock.Anything, mock.Anything).Return(subscription.ErrConflict)

		svc := subscription.NewService(st, passthroughTx{})
		_, err := svc.Create(context.Background(), "acc_1", subscription.PlanMonthly)

		assert.ErrorIs(t, err, subscription.ErrAlreadyActive)
	})
}

func TestNewService_PanicsWithoutDeps(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	assert.Panics(t, func() { subscription.NewService(nil, st) })
	assert.Panics(t, func() { subscription.NewService(st, nil) })
}

func TestService_ConcurrentActivation(t *testing.T) {
	t.Parallel()

	svc, st, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ActivateForPayment(ctx, subscription.ActivateParams{AccountID: "acc_1", Plan: subscription.PlanMonthly, PaymentID: "pay_same"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, subscription.ErrAlreadyLinked)
	}
	assert.Equal(t, 1, ok)

	subs, err := st.ListSubscriptionsByAccount(ctx, "acc_1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
