package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Status of a subscription.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusGracePeriod Status = "GRACE_PERIOD"
	StatusExpired     Status = "EXPIRED"
	StatusCancelled   Status = "CANCELLED"
)

// GracePeriod is how long access continues after EndDate.
const GracePeriod = 3 * 24 * time.Hour

// Subscription is one paid period of a practice account.
type Subscription struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   string     `json:"account_id"`
	Plan        Plan       `json:"plan"`
	Status      Status     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	AutoRenew   bool       `json:"auto_renew"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	PaymentID   string     `json:"payment_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Clone returns a copy that shares nothing with s.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}

// GraceEndsAt is the last instant of the grace window.
func (s *Subscription) GraceEndsAt() time.Time {
	return s.EndDate.Add(GracePeriod)
}

// PaidThrough reports a cancelled subscription whose paid period has not
// ended yet.
func (s *Subscription) PaidThrough(now time.Time) bool {
	return s.Status == StatusCancelled && now.Before(s.EndDate)
}

// Entitled reports whether the subscription currently grants paid access.
func (s *Subscription) Entitled(now time.Time) bool {
	return IsActive(s.Status, s.EndDate, now) || s.PaidThrough(now)
}

// DaysRemaining counts whole or partial days until EndDate.
func (s *Subscription) DaysRemaining(now time.Time) int {
	return daysUntil(s.EndDate, now)
}

func daysUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

// EvaluateExpiry returns the status sub should have at now. Only ACTIVE and
// GRACE_PERIOD change with time.
func EvaluateExpiry(sub *Subscription, now time.Time) Status {
	switch sub.Status {
	case StatusActive, StatusGracePeriod:
	default:
		return sub.Status
	}

	switch {
	case !now.After(sub.EndDate):
		return StatusActive
	case !now.After(sub.GraceEndsAt()):
		return StatusGracePeriod
	default:
		return StatusExpired
	}
}

// IsActive reports whether status and end date grant access at now.
func IsActive(status Status, endDate, now time.Time) bool {
	return (status == StatusActive && !now.After(endDate)) || status == StatusGracePeriod
}
