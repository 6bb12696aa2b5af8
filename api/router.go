package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/practicebilling/pkg/httpserver"
	"github.com/dmitrymomot/practicebilling/pkg/webhook"
	"github.com/dmitrymomot/practicebilling/svc/access"
	"github.com/dmitrymomot/practicebilling/svc/payment"
	"github.com/dmitrymomot/practicebilling/svc/reminder"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

type PaymentService interface {
	CreateOrder(ctx context.Context, accountID string, plan subscription.Plan, customer payment.CustomerInfo) (*payment.OrderResult, error)
	VerifyPayment(ctx context.Context, req payment.VerifyRequest) (*payment.VerifyResult, error)
	Transactions(ctx context.Context, accountID string) ([]*payment.Transaction, error)
}

type SubscriptionService interface {
	Status(ctx context.Context, accountID string) (*subscription.StatusView, error)
	Create(ctx context.Context, accountID string, plan subscription.Plan) (*subscription.Subscription, error)
	Upgrade(ctx context.Context, accountID string, newPlan subscription.Plan) (*subscription.Subscription, error)
	Cancel(ctx context.Context, accountID string) (*subscription.Subscription, error)
	History(ctx context.Context, accountID string) ([]*subscription.Subscription, error)
}

type AccessChecker interface {
	CheckAccess(ctx context.Context, accountID, feature string) (*access.Decision, error)
}

type WebhookQueue interface {
	Submit(ctx context.Context, payload []byte, signature string, headers map[string]string, priority webhook.Priority) (*webhook.Job, error)
	Failed(ctx context.Context) ([]*webhook.Job, error)
	Clear(ctx context.Context) (int, error)
	Stats() webhook.Stats
}

type SignatureChecker interface {
	Check(payload []byte, signature string) error
}

type ReminderRunner interface {
	RunOnce(ctx context.Context) (*reminder.RunReport, error)
}

// Dependencies of the router. Reminders, Registry and HealthChecks are
// optional.
type Dependencies struct {
	Payments      PaymentService
	Subscriptions SubscriptionService
	Access        AccessChecker
	Webhooks      WebhookQueue
	Verifier      SignatureChecker
	Reminders     ReminderRunner
	Registry      *prometheus.Registry
	HealthChecks  map[string]httpserver.Check
	Logger        *slog.Logger
}

type handlers struct {
	cfg  Config
	deps Dependencies
	log  *slog.Logger
}

// NewRouter panics if a required dependency is missing.
func NewRouter(cfg Config, deps Dependencies) http.Handler {
	switch {
	case deps.Payments == nil:
		panic("api: Payments is required")
	case deps.Subscriptions == nil:
		panic("api: Subscriptions is required")
	case deps.Access == nil:
		panic("api: Access is required")
	case deps.Webhooks == nil:
		panic("api: Webhooks is required")
	case deps.Verifier == nil:
		panic("api: Verifier is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	var (
		reg      prometheus.Registerer = deps.Registry
		gatherer prometheus.Gatherer   = deps.Registry
	)
	if deps.Registry == nil {
		reg, gatherer = nil, prometheus.NewRegistry()
	}
	metrics := NewMetrics(reg)

	h := &handlers{cfg: cfg, deps: deps, log: deps.Logger.With(slog.String("component", "api"))}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.instrument)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = jsonResponse{
			status: http.StatusNotFound,
			body:   JSONResponse{Error: &ErrorDetail{Code: "NOT_FOUND", Message: "Not found."}},
		}.Render(w, r)
	})

	r.Get("/healthz", httpserver.HealthHandler(h.log, cfg.HealthTimeout, deps.HealthChecks))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		r.Use(h.limitBody)

		r.Post("/webhooks/payments", handle(h.log, h.ingestWebhook))

		r.Route("/payments", func(r chi.Router) {
			r.Use(requireAccount)
			r.Post("/orders", handle(h.log, h.createOrder))
			r.Post("/verify", handle(h.log, h.verifyPayment))
			r.Get("/transactions", handle(h.log, h.transactions))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(requireAccount)
			r.Get("/status", handle(h.log, h.subscriptionStatus))
			r.Post("/", handle(h.log, h.createSubscription))
			r.Post("/upgrade", handle(h.log, h.upgradeSubscription))
			r.Post("/cancel", handle(h.log, h.cancelSubscription))
			r.Get("/history", handle(h.log, h.subscriptionHistory))
			r.Get("/features/{name}", handle(h.log, h.checkFeature))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin(cfg.AdminToken))
			r.Get("/webhooks/failed", handle(h.log, h.failedWebhooks))
			r.Get("/webhooks/stats", handle(h.log, h.webhookStats))
			r.Post("/webhooks/clear", handle(h.log, h.clearWebhooks))
			if deps.Reminders != nil {
				r.Post("/reminders/run", handle(h.log, h.runReminders))
			}
		})
	})

	return r
}

func (h *handlers) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
