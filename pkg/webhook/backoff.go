package webhook

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy calculates the delay before the next delivery attempt.
type BackoffStrategy interface {
	// NextInterval returns the delay after the given failed attempt (1-based).
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay as Initial * Multiplier^(attempt-1),
// capped at MaxInterval. Jitter is off unless JitterFactor is set.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	maxInterval := e.MaxInterval
	if maxInterval <= 0 {
		maxInterval = time.Minute
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}
	return time.Duration(interval)
}

// DefaultBackoff is 1s doubling up to 60s without jitter.
func DefaultBackoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
	}
}
