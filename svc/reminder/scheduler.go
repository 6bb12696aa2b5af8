package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// RunReport summarizes one pass of the routine.
type RunReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Swept     int           `json:"swept"`
	Expiring  int           `json:"expiring"`
	Grace     int           `json:"grace"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
}

// Scheduler runs the reminder routine on an interval or on demand.
type Scheduler struct {
	subs       Subscriptions
	notifier   Notifier
	sent       SentLog
	interval   time.Duration
	thresholds []int
	runOnStart bool
	now        func() time.Time
	logger     *slog.Logger
	metrics    *Metrics
	running    atomic.Bool
}

// NewScheduler panics on nil collaborators and on non-positive thresholds.
// Thresholds are processed smallest first so the most urgent notice wins
// the daily slot.
func NewScheduler(cfg Config, subs Subscriptions, notifier Notifier, opts ...Option) *Scheduler {
	if subs == nil {
		panic("reminder: Subscriptions is required")
	}
	if notifier == nil {
		panic("reminder: Notifier is required")
	}

	thresholds := slices.Clone(cfg.Thresholds)
	if len(thresholds) == 0 {
		thresholds = DefaultConfig().Thresholds
	}
	slices.Sort(thresholds)
	thresholds = slices.Compact(thresholds)
	if thresholds[0] <= 0 {
		panic(ErrInvalidThreshold)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}

	s := &Scheduler{
		subs:       subs,
		notifier:   notifier,
		sent:       NewMemorySentLog(),
		interval:   interval,
		thresholds: thresholds,
		runOnStart: cfg.RunOnStart,
		now:        time.Now,
		logger:     slog.Default(),
		metrics:    NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("reminder"))
	return s
}

// Start blocks, running the routine every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "reminder run failed", logger.Error(err))
	}
}

// RunOnce runs the routine now. It returns ErrAlreadyRunning if another run
// is in progress; the trigger is dropped, not deferred.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.runs.WithLabelValues("skipped").Inc()
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	report, err := s.run(ctx)
	if err != nil {
		s.metrics.runs.WithLabelValues("error").Inc()
		return report, err
	}
	s.metrics.runs.WithLabelValues("ok").Inc()

	s.logger.InfoContext(ctx, "reminder run finished",
		slog.Int("swept", report.Swept),
		slog.Int("expiring", report.Expiring),
		slog.Int("grace", report.Grace),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		logger.Duration(report.Duration),
	)
	return report, nil
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) run(ctx context.Context) (*RunReport, error) {
	now := s.now()
	report := &RunReport{StartedAt: now}
	defer func() { report.Duration = s.now().Sub(now) }()

	swept, err := s.subs.SweepExpired(ctx, now)
	report.Swept = swept
	if err != nil {
		return report, fmt.Errorf("sweep expired subscriptions: %w", err)
	}

	for _, days := range s.thresholds {
		subs, err := s.subs.ListExpiring(ctx, now, time.Duration(days)*24*time.Hour)
		if err != nil {
			return report, fmt.Errorf("list subscriptions expiring within %d days: %w", days, err)
		}
		for _, sub := range subs {
			s.dispatch(ctx, report, Reminder{
				Kind:         KindExpiring,
				Subscription: sub,
				DaysLeft:     sub.DaysRemaining(now),
				Threshold:    days,
				SentAt:       now,
			})
		}
	}

	grace, err := s.subs.ListInGrace(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list subscriptions in grace: %w", err)
	}
	for _, sub := range grace {
		s.dispatch(ctx, report, Reminder{
			Kind:         KindGrace,
			Subscription: sub,
			DaysLeft:     graceDaysLeft(sub, now),
			SentAt:       now,
		})
	}

	return report, nil
}

func (s *Scheduler) dispatch(ctx context.Context, report *RunReport, r Reminder) {
	sub := r.Subscription
	log := s.logger.With(
		logger.AccountID(sub.AccountID),
		logger.SubscriptionID(sub.ID),
		slog.String("kind", string(r.Kind)),
	)

	key := sentKey(sub.ID, r.SentAt)
	fresh, err := s.sent.Mark(ctx, key)
	if err != nil {
		report.Failed++
		s.metrics.failed.WithLabelValues(string(r.Kind)).Inc()
		log.ErrorContext(ctx, "failed to record reminder", logger.Error(err))
		return
	}
	if !fresh {
		report.Skipped++
		return
	}

	if err := s.notifier.Notify(ctx, r); err != nil {
		report.Failed++
		s.metrics.failed.WithLabelValues(string(r.Kind)).Inc()
		log.ErrorContext(ctx, "failed to send reminder", logger.Error(err))
		if err := s.sent.Forget(ctx, key); err != nil {
			log.WarnContext(ctx, "failed to release reminder slot", logger.Error(err))
		}
		return
	}

	switch r.Kind {
	case KindGrace:
		report.Grace++
	case KindExpiring:
		report.Expiring++
	}
	s.metrics.sent.WithLabelValues(string(r.Kind)).Inc()
}

var _ Subscriptions = (*subscription.Service)(nil)
