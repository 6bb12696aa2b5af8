package gateway

import (
	"context"

	"github.com/dmitrymomot/practicebilling/pkg/webhook"
)

// Payment states reported by the gateway.
const (
	PaymentCreated    = "created"
	PaymentAuthorized = "authorized"
	PaymentCaptured   = "captured"
	PaymentRefunded   = "refunded"
	PaymentFailed     = "failed"
)

// Client is the subset of the gateway API used by the payment service.
type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// OrderRequest describes an order in minor currency units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt,omitempty"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

type Payment struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Method           string            `json:"method,omitempty"`
	Email            string            `json:"email,omitempty"`
	ErrorCode        string            `json:"error_code,omitempty"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Notes            map[string]string `json:"notes,omitempty"`
	CreatedAt        int64             `json:"created_at"`
}

// Completed reports whether the payment may activate a subscription.
func (p *Payment) Completed() bool {
	return p.Status == PaymentCaptured || p.Status == PaymentAuthorized
}

// PaymentSignature is the checkout signature the gateway hands to the client
// after payment: HMAC-SHA256 of "orderID|paymentID" keyed by the key secret.
func PaymentSignature(orderID, paymentID, secret string) string {
	return webhook.Sign([]byte(orderID+"|"+paymentID), secret)
}

// VerifyPaymentSignature checks a checkout signature in constant time.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	return webhook.Verify([]byte(orderID+"|"+paymentID), signature, secret)
}
