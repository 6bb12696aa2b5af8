package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/practicebilling/pkg/webhook"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("REMINDER_THRESHOLDS", "7,3,1")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:0", cfg.HTTP.Addr)
	assert.Equal(t, []int{7, 3, 1}, cfg.Reminder.Thresholds)
	assert.Equal(t, 24*time.Hour, cfg.Reminder.Interval)
	assert.Equal(t, 5, cfg.Webhook.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Webhook.BackoffBase)
	assert.Equal(t, webhook.DefaultFailedRetention, cfg.Webhook.FailedRetention)
	assert.Equal(t, int64(99900), cfg.Plans.MonthlyAmount)
	assert.Equal(t, "billing_schema_migrations", cfg.Postgres.MigrationsTable)
	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.env")
	require.NoError(t, os.WriteFile(path, []byte("SERVICE_NAME=billing-test\nPLAN_CURRENCY=USD\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("SERVICE_NAME")
		_ = os.Unsetenv("PLAN_CURRENCY")
	})

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "billing-test", cfg.ServiceName)
	assert.Equal(t, "USD", cfg.Plans.Currency)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestBuild_InMemory(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("EMAIL_DEV_DIR", t.TempDir())

	cfg, err := loadConfig()
	require.NoError(t, err)

	a, err := build(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(a.close)

	assert.NotNil(t, a.processor)
	assert.NotNil(t, a.scheduler)
	assert.NotNil(t, a.router)
	assert.NotNil(t, a.server)

	report, err := a.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Expiring)

	require.NoError(t, a.processor.Stop(context.Background()))
}

func TestRequestIDExtractor(t *testing.T) {
	_, ok := requestIDExtractor(context.Background())
	assert.False(t, ok)
}
