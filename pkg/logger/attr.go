package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func stringAttr(key, v string) slog.Attr {
	if v == "" {
		return slog.Attr{}
	}
	return slog.String(key, v)
}

// AccountID records the practice account under "account_id".
func AccountID(id string) slog.Attr { return stringAttr("account_id", id) }

// JobID records the webhook job under "job_id".
func JobID(id string) slog.Attr { return stringAttr("job_id", id) }

// OrderID records the gateway order under "order_id".
func OrderID(id string) slog.Attr { return stringAttr("order_id", id) }

// PaymentID records the gateway payment under "payment_id".
func PaymentID(id string) slog.Attr { return stringAttr("payment_id", id) }

// SubscriptionID records the subscription under "subscription_id".
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

// RequestID records the HTTP request id under "request_id".
func RequestID(id string) slog.Attr { return stringAttr("request_id", id) }

// Event records the gateway event name under "event".
func Event(name string) slog.Attr { return stringAttr("event", name) }

// Feature records a gated feature name under "feature".
func Feature(name string) slog.Attr { return stringAttr("feature", name) }

// Attempt records a delivery attempt number under "attempt".
func Attempt(n int) slog.Attr { return slog.Int("attempt", n) }

// Duration records a duration under "duration".
func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }

// Component records the component name under "component".
func Component(name string) slog.Attr { return slog.String("component", name) }
