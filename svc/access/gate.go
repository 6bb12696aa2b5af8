package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/pkg/ratelimit"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// SubscriptionReader returns the subscription that governs an account, with
// its status already evaluated, or nil.
type SubscriptionReader interface {
	Current(ctx context.Context, accountID string) (*subscription.Subscription, error)
}

// Decision is the outcome of an access check.
type Decision struct {
	Feature   string     `json:"feature"`
	Allowed   bool       `json:"allowed"`
	Reason    string     `json:"reason,omitempty"`
	Warning   string     `json:"warning,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Remaining int        `json:"remaining,omitempty"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// Err returns the error matching a denial, or nil when allowed.
func (d *Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if err, ok := denials[d.Reason]; ok {
		return err
	}
	return ErrNoSubscription
}

// Gate checks feature access.
type Gate struct {
	registry *Registry
	subs     SubscriptionReader
	limiter  *ratelimit.FixedWindow
	now      func() time.Time
	logger   *slog.Logger
}

// NewGate panics on nil registry or subscription reader. Without
// WithRateLimiter feature rate limits are not enforced.
func NewGate(registry *Registry, subs SubscriptionReader, opts ...Option) *Gate {
	if registry == nil || subs == nil {
		panic("access: registry and subscription reader are required")
	}
	g := &Gate{
		registry: registry,
		subs:     subs,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(logger.Component("access"))
	return g
}

// Registry returns the features the gate knows.
func (g *Gate) Registry() *Registry {
	return g.registry
}

// CheckAccess decides whether accountID may use feature now. Every call that
// passes the subscription gate counts against the feature's usage limit.
func (g *Gate) CheckAccess(ctx context.Context, accountID, feature string) (*Decision, error) {
	if accountID == "" {
		return nil, ErrAccountRequired
	}
	cfg, ok := g.registry.Get(feature)
	if !ok {
		return nil, ErrUnknownFeature.WithMessage("feature " + feature + " is not registered")
	}

	d := &Decision{Feature: feature, Allowed: true}
	if cfg.RequiresSubscription {
		sub, err := g.subs.Current(ctx, accountID)
		if err != nil {
			return nil, err
		}
		g.checkSubscription(d, cfg, sub, g.now())
		if !d.Allowed {
			g.logger.DebugContext(ctx, "feature access denied",
				logger.AccountID(accountID),
				logger.Feature(feature),
				slog.String("reason", d.Reason),
			)
			return d, nil
		}
	}

	if cfg.RateLimit != nil && g.limiter != nil {
		res, err := g.limiter.Allow(ctx, ratelimit.Key("feature", accountID, feature), cfg.RateLimit.MaxUsage, cfg.RateLimit.Window)
		if err != nil {
			return nil, err
		}
		d.Limit = res.Limit
		d.Remaining = res.Remaining
		resetAt := res.ResetAt
		d.ResetAt = &resetAt
		if !res.Allowed {
			d.Allowed = false
			d.Reason = ReasonRateLimitExceeded
			d.Warning = ""
			g.logger.InfoContext(ctx, "feature rate limit exceeded",
				logger.AccountID(accountID),
				logger.Feature(feature),
				slog.Int("limit", res.Limit),
			)
		}
	}
	return d, nil
}

func (g *Gate) checkSubscription(d *Decision, cfg FeatureConfig, sub *subscription.Subscription, now time.Time) {
	deny := func(reason string) {
		d.Allowed = false
		d.Reason = reason
	}

	switch {
	case sub == nil:
		deny(ReasonNoSubscription)
		return
	case subscription.IsActive(sub.Status, sub.EndDate, now):
		if sub.Status == subscription.StatusGracePeriod {
			if !cfg.AllowGracePeriod {
				deny(ReasonExpired)
				return
			}
			d.Warning = "subscription expired on " + sub.EndDate.Format(time.DateOnly) +
				", access continues until " + sub.GraceEndsAt().Format(time.DateOnly)
		}
	case sub.PaidThrough(now):
	case sub.Status == subscription.StatusCancelled:
		deny(ReasonCancelled)
		return
	default:
		deny(ReasonExpired)
		return
	}

	if cfg.MinimumPlan != "" && sub.Plan.Rank() < cfg.MinimumPlan.Rank() {
		d.Warning = ""
		deny(ReasonInsufficientPlan)
	}
}

// HasFeatureAccess is CheckAccess collapsed to a bool. Errors deny.
func (g *Gate) HasFeatureAccess(ctx context.Context, accountID, feature string) bool {
	d, err := g.CheckAccess(ctx, accountID, feature)
	if err != nil {
		if !errors.Is(err, ErrUnknownFeature) {
			g.logger.WarnContext(ctx, "feature access check failed",
				logger.AccountID(accountID),
				logger.Feature(feature),
				logger.Error(err),
			)
		}
		return false
	}
	return d.Allowed
}
