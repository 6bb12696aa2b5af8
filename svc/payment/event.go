package payment

import (
	"encoding/json"

	"github.com/dmitrymomot/practicebilling/pkg/gateway"
	"github.com/dmitrymomot/practicebilling/pkg/webhook"
)

// Gateway event names.
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventOrderPaid         = "order.paid"
	EventRefundCreated     = "refund.created"
	EventRefundProcessed   = "refund.processed"
)

var eventPriorities = map[string]webhook.Priority{
	EventPaymentCaptured:   webhook.PriorityHigh,
	EventOrderPaid:         webhook.PriorityHigh,
	EventPaymentAuthorized: webhook.PriorityNormal,
	EventPaymentFailed:     webhook.PriorityNormal,
	EventRefundCreated:     webhook.PriorityLow,
	EventRefundProcessed:   webhook.PriorityLow,
}

// Entity wraps a gateway object the way the event envelope nests it.
type Entity[T any] struct {
	Entity T `json:"entity"`
}

// Refund is the refund object carried by refund events.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

type EventPayload struct {
	Payment *Entity[gateway.Payment] `json:"payment,omitempty"`
	Order   *Entity[gateway.Order]   `json:"order,omitempty"`
	Refund  *Entity[Refund]          `json:"refund,omitempty"`
}

// Event is a gateway webhook envelope.
type Event struct {
	Event     string       `json:"event"`
	Payload   EventPayload `json:"payload"`
	CreatedAt int64        `json:"created_at"`
}

// Payment returns the payment entity or nil.
func (e *Event) Payment() *gateway.Payment {
	if e.Payload.Payment == nil || e.Payload.Payment.Entity.ID == "" {
		return nil
	}
	return &e.Payload.Payment.Entity
}

// Order returns the order entity or nil.
func (e *Event) Order() *gateway.Order {
	if e.Payload.Order == nil || e.Payload.Order.Entity.ID == "" {
		return nil
	}
	return &e.Payload.Order.Entity
}

// Refund returns the refund entity or nil.
func (e *Event) Refund() *Refund {
	if e.Payload.Refund == nil || e.Payload.Refund.Entity.ID == "" {
		return nil
	}
	return &e.Payload.Refund.Entity
}

// ParseEvent decodes a raw webhook body. Only the envelope is checked here;
// entity requirements depend on the event and are checked when handled.
func ParseEvent(payload []byte) (*Event, error) {
	if len(payload) == 0 {
		return nil, ErrMalformedEvent.WithMessage("empty payload")
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, ErrMalformedEvent.WithCause(err)
	}
	if ev.Event == "" {
		return nil, ErrMalformedEvent.WithMessage("event name missing")
	}
	return &ev, nil
}

// IsRecognized reports whether the engine acts on the event.
func IsRecognized(event string) bool {
	_, ok := eventPriorities[event]
	return ok
}

// EventPriority returns the queue priority of event. Unknown events are low.
func EventPriority(event string) webhook.Priority {
	if p, ok := eventPriorities[event]; ok {
		return p
	}
	return webhook.PriorityLow
}
