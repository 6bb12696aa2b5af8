package webhook

import (
	"log/slog"
	"time"
)

// FailureHook is invoked exactly once when a job fails permanently.
type FailureHook func(job *Job, err error)

// RetryHook is invoked each time a job is scheduled for another attempt.
type RetryHook func(job *Job, delay time.Duration, err error)

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithJobStore(store JobStore) ProcessorOption {
	return func(p *Processor) {
		if store != nil {
			p.store = store
		}
	}
}

func WithBackoff(strategy BackoffStrategy) ProcessorOption {
	return func(p *Processor) {
		if strategy != nil {
			p.backoff = strategy
		}
	}
}

func WithMaxAttempts(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithIdlePoll bounds how long the worker sleeps while only future retries
// are queued.
func WithIdlePoll(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.idlePoll = d
		}
	}
}

func WithMetrics(m *Metrics) ProcessorOption {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithOnFailed(hook FailureHook) ProcessorOption {
	return func(p *Processor) {
		p.onFailed = hook
	}
}

func WithOnRetry(hook RetryHook) ProcessorOption {
	return func(p *Processor) {
		p.onRetry = hook
	}
}
