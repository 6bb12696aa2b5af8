// Command billingd runs the billing engine: the HTTP API, the webhook worker
// and the reminder scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/practicebilling/api"
	"github.com/dmitrymomot/practicebilling/pkg/email"
	"github.com/dmitrymomot/practicebilling/pkg/gateway"
	"github.com/dmitrymomot/practicebilling/pkg/httpserver"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/pkg/pg"
	"github.com/dmitrymomot/practicebilling/pkg/ratelimit"
	"github.com/dmitrymomot/practicebilling/pkg/redis"
	"github.com/dmitrymomot/practicebilling/pkg/webhook"
	"github.com/dmitrymomot/practicebilling/svc/access"
	"github.com/dmitrymomot/practicebilling/svc/payment"
	"github.com/dmitrymomot/practicebilling/svc/reminder"
	"github.com/dmitrymomot/practicebilling/svc/store"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

func main() {
	envFile := flag.String("env-file", "", "additional .env file to load")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}

	if err := run(files); err != nil {
		fmt.Fprintln(os.Stderr, "billingd:", err)
		os.Exit(1)
	}
}

func run(envFiles []string) error {
	cfg, err := loadConfig(envFiles...)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(app.processor.Run(ctx))
	g.Go(func() error { return app.scheduler.Start(ctx) })
	g.Go(func() error { return app.server.Run(ctx, app.router) })

	log.InfoContext(ctx, "billingd started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.Bool("postgres", cfg.Postgres.Enabled()),
		slog.Bool("redis", cfg.Redis.Enabled()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("billingd stopped")
	return nil
}

// billingStore is satisfied by both store.Memory and store.Postgres.
type billingStore interface {
	subscription.Store
	subscription.Transactor
	payment.TransactionStore
}

type app struct {
	processor *webhook.Processor
	scheduler *reminder.Scheduler
	server    *httpserver.Server
	router    http.Handler
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	health := map[string]httpserver.Check{}

	var st billingStore
	if cfg.Postgres.Enabled() {
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := pg.Migrate(ctx, pool, store.Migrations(), cfg.Postgres.MigrationsTable, log); err != nil {
			return nil, err
		}
		st = store.NewPostgres(pool)
		health["postgres"] = pg.Healthcheck(pool)
	} else {
		log.Warn("DATABASE_URL is not set, using in-memory storage")
		st = store.NewMemory()
	}

	var (
		jobStore   webhook.JobStore
		limitStore ratelimit.Store
		sentLog    reminder.SentLog
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		health["redis"] = redis.Healthcheck(rdb)
		jobStore, limitStore, sentLog = redisStores(rdb, cfg)
	} else {
		mem := ratelimit.NewMemoryStore()
		a.closers = append(a.closers, func() { _ = mem.Close() })
		jobStore, limitStore, sentLog = webhook.NewMemoryJobStore(webhook.WithFailedRetention(cfg.Webhook.FailedRetention)), mem, reminder.NewMemorySentLog()
	}

	var gw gateway.Client
	if cfg.Gateway.KeyID != "" && cfg.Gateway.KeySecret != "" {
		gw, err = gateway.NewHTTPClient(cfg.Gateway, gateway.WithLogger(log))
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("gateway credentials are not set, using the in-memory gateway")
		gw = gateway.NewMemoryClient()
	}

	subs := subscription.NewService(st, st,
		subscription.WithCatalog(cfg.Plans.Catalog()),
		subscription.WithLogger(log),
	)
	payments := payment.NewService(cfg.Payment, gw, subs, st, st, payment.WithLogger(log))

	verifier := webhook.NewVerifier(cfg.Webhook.Secret, log)
	a.processor = webhook.NewProcessor(payment.NewWebhookHandler(payments, verifier),
		webhook.WithJobStore(jobStore),
		webhook.WithBackoff(cfg.Webhook.Backoff()),
		webhook.WithMaxAttempts(cfg.Webhook.MaxAttempts),
		webhook.WithIdlePoll(cfg.Webhook.IdlePoll),
		webhook.WithMetrics(webhook.NewMetrics(registry)),
		webhook.WithLogger(log),
	)

	limiter, err := ratelimit.NewFixedWindow(limitStore)
	if err != nil {
		return nil, err
	}
	features, err := access.LoadRegistry(cfg.Access.FeaturesFile)
	if err != nil {
		return nil, err
	}
	gate := access.NewGate(features, subs, access.WithRateLimiter(limiter), access.WithLogger(log))

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return nil, err
	}
	a.scheduler = reminder.NewScheduler(cfg.Reminder, subs, notifier,
		reminder.WithSentLog(sentLog),
		reminder.WithMetrics(reminder.NewMetrics(registry)),
		reminder.WithLogger(log),
	)

	a.router = api.NewRouter(cfg.API, api.Dependencies{
		Payments:      payments,
		Subscriptions: subs,
		Access:        gate,
		Webhooks:      a.processor,
		Verifier:      verifier,
		Reminders:     a.scheduler,
		Registry:      registry,
		HealthChecks:  health,
		Logger:        log,
	})
	a.server = httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return a, nil
}

func redisStores(rdb *goredis.Client, cfg appConfig) (webhook.JobStore, ratelimit.Store, reminder.SentLog) {
	return webhook.NewRedisJobStore(rdb, cfg.Webhook.RedisPrefix, webhook.WithFailedRetention(cfg.Webhook.FailedRetention)),
		ratelimit.NewRedisStore(rdb, ""),
		reminder.NewRedisSentLog(rdb, cfg.Reminder.RedisPrefix)
}

// newNotifier sends email when a contacts file is configured and only logs
// otherwise.
func newNotifier(cfg appConfig, log *slog.Logger) (reminder.Notifier, error) {
	if cfg.Reminder.ContactsFile == "" {
		log.Warn("REMINDER_CONTACTS_FILE is not set, reminders are only logged")
		return reminder.NewLogNotifier(log), nil
	}
	contacts, err := reminder.LoadContacts(cfg.Reminder.ContactsFile)
	if err != nil {
		return nil, err
	}
	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return nil, err
	}
	if !cfg.Email.PostmarkEnabled() {
		log.Warn("postmark is not configured, reminder emails are written to disk", slog.String("dir", cfg.Email.DevDir))
	}
	return reminder.NewEmailNotifier(sender, contacts), nil
}
