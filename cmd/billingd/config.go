package main

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/practicebilling/api"
	"github.com/dmitrymomot/practicebilling/pkg/config"
	"github.com/dmitrymomot/practicebilling/pkg/email"
	"github.com/dmitrymomot/practicebilling/pkg/gateway"
	"github.com/dmitrymomot/practicebilling/pkg/httpserver"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/pkg/pg"
	"github.com/dmitrymomot/practicebilling/pkg/redis"
	"github.com/dmitrymomot/practicebilling/pkg/webhook"
	"github.com/dmitrymomot/practicebilling/svc/access"
	"github.com/dmitrymomot/practicebilling/svc/payment"
	"github.com/dmitrymomot/practicebilling/svc/reminder"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"billingd"`
	LogLevel    string `env:"LOG_LEVEL"`

	HTTP     httpserver.Config
	API      api.Config
	Postgres pg.Config
	Redis    redis.Config
	Gateway  gateway.Config
	Payment  payment.Config
	Plans    subscription.Config
	Webhook  webhook.Config
	Access   access.Config
	Reminder reminder.Config
	Email    email.Config
}

func loadConfig(envFiles ...string) (appConfig, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return appConfig{}, err
	}
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(requestIDExtractor),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return logger.RequestID(id), true
	}
	return slog.Attr{}, false
}
