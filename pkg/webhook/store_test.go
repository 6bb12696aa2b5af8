package webhook_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/practicebilling/pkg/webhook"
)

func newRedisJobStore(t *testing.T, opts ...webhook.StoreOption) *webhook.RedisJobStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return webhook.NewRedisJobStore(client, "test:webhooks", opts...)
}

func TestJobStores(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) webhook.JobStore{
		"memory": func(*testing.T) webhook.JobStore { return webhook.NewMemoryJobStore() },
		"redis":  func(t *testing.T) webhook.JobStore { return newRedisJobStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t)
			base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			retryAt := base.Add(10 * time.Second)

			pending := &webhook.Job{ID: "j-pending", Payload: []byte(`{"a":1}`), Priority: webhook.PriorityHigh, MaxAttempts: 5, Status: webhook.StatusPending, CreatedAt: base.Add(5 * time.Second)}
			retrying := &webhook.Job{ID: "j-retry", Payload: []byte(`{"b":2}`), Priority: webhook.PriorityLow, Attempts: 2, MaxAttempts: 5, Status: webhook.StatusRetrying, CreatedAt: base, NextRetryAt: &retryAt}
			early := &webhook.Job{ID: "j-early", Payload: []byte(`{"c":3}`), Priority: webhook.PriorityNormal, MaxAttempts: 5, Status: webhook.StatusPending, CreatedAt: base}

			require.NoError(t, store.Save(ctx, pending))
			require.NoError(t, store.Save(ctx, retrying))
			require.NoError(t, store.Save(ctx, early))

			active, err := store.Active(ctx)
			require.NoError(t, err)
			require.Len(t, active, 3)
			assert.Equal(t, "j-early", active[0].ID)
			assert.Equal(t, "j-pending", active[1].ID)
			assert.Equal(t, "j-retry", active[2].ID)
			require.NotNil(t, active[2].NextRetryAt)
			assert.True(t, retryAt.Equal(*active[2].NextRetryAt))
			assert.Equal(t, []byte(`{"b":2}`), active[2].Payload)

			failedAt := base.Add(time.Minute)
			retrying.Status = webhook.StatusFailed
			retrying.FailedAt = &failedAt
			require.NoError(t, store.Archive(ctx, retrying))
			require.NoError(t, store.Delete(ctx, "j-early"))

			active, err = store.Active(ctx)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, "j-pending", active[0].ID)

			failed, err := store.Failed(ctx)
			require.NoError(t, err)
			require.Len(t, failed, 1)
			assert.Equal(t, "j-retry", failed[0].ID)
			assert.Equal(t, webhook.StatusFailed, failed[0].Status)

			require.NoError(t, store.Clear(ctx))
			active, err = store.Active(ctx)
			require.NoError(t, err)
			assert.Empty(t, active)

			failed, err = store.Failed(ctx)
			require.NoError(t, err)
			assert.Len(t, failed, 1, "clear keeps archived jobs")
		})
	}
}

func TestMemoryJobStore_IsolatesCallerMutations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := webhook.NewMemoryJobStore()
	job := &webhook.Job{ID: "j1", Payload: []byte("x"), Status: webhook.StatusPending, CreatedAt: time.Now()}
	require.NoError(t, store.Save(ctx, job))

	job.Status = webhook.StatusCompleted
	job.Payload[0] = 'y'

	active, err := store.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, webhook.StatusPending, active[0].Status)
	assert.Equal(t, []byte("x"), active[0].Payload)
}

func TestProcessor_WithRedisJobStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newRedisJobStore(t)

	p := webhook.NewProcessor(webhook.HandlerFunc(func(context.Context, *webhook.Job) error {
		return webhook.ErrInvalidSignature
	}), webhook.WithJobStore(store))
	defer stopProcessor(t, p)

	job, err := p.Submit(ctx, []byte(`{"event":"payment.failed"}`), "bad", nil, webhook.PriorityNormal)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)

	failed, err := p.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, job.ID, failed[0].ID)
	assert.Contains(t, failed[0].Error, "INVALID_SIGNATURE")
}

func TestJobStores_FailedRetention(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) webhook.JobStore{
		"memory": func(*testing.T) webhook.JobStore {
			return webhook.NewMemoryJobStore(webhook.WithFailedRetention(2))
		},
		"redis": func(t *testing.T) webhook.JobStore {
			return newRedisJobStore(t, webhook.WithFailedRetention(2))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t)
			base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

			for i, id := range []string{"dup-1", "dup-2", "dup-3", "dup-4"} {
				failedAt := base.Add(time.Duration(i) * time.Minute)
				job := &webhook.Job{ID: id, Payload: []byte(`{}`), Priority: webhook.PriorityHigh, Attempts: 1, MaxAttempts: 5, CreatedAt: base}
				require.NoError(t, store.Save(ctx, job))
				job.Status = webhook.StatusFailed
				job.FailedAt = &failedAt
				require.NoError(t, store.Archive(ctx, job))
			}

			failed, err := store.Failed(ctx)
			require.NoError(t, err)
			require.Len(t, failed, 2)
			assert.Equal(t, "dup-4", failed[0].ID)
			assert.Equal(t, "dup-3", failed[1].ID)
		})
	}
}
