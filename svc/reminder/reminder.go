package reminder

import (
	"context"
	"time"

	"github.com/dmitrymomot/practicebilling/svc/subscription"
)

// Kind of notice.
type Kind string

const (
	KindExpiring Kind = "expiring"
	KindGrace    Kind = "grace"
)

// Reminder is one notice about one subscription.
type Reminder struct {
	Kind         Kind
	Subscription *subscription.Subscription
	// DaysLeft counts days until EndDate for expiring notices and until
	// the grace window closes for grace notices.
	DaysLeft  int
	Threshold int
	SentAt    time.Time
}

// Notifier delivers reminders.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r Reminder) error

func (f NotifierFunc) Notify(ctx context.Context, r Reminder) error {
	return f(ctx, r)
}

// Subscriptions is the part of the subscription service the scheduler uses.
type Subscriptions interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	ListExpiring(ctx context.Context, now time.Time, within time.Duration) ([]*subscription.Subscription, error)
	ListInGrace(ctx context.Context, now time.Time) ([]*subscription.Subscription, error)
}

func graceDaysLeft(sub *subscription.Subscription, now time.Time) int {
	d := sub.GraceEndsAt().Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
