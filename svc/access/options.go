package access

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/practicebilling/pkg/ratelimit"
)

// Option configures a Gate.
type Option func(*Gate)

// WithRateLimiter enables per-feature usage limits.
func WithRateLimiter(l *ratelimit.FixedWindow) Option {
	return func(g *Gate) {
		g.limiter = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}
