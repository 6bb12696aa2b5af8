package payment

import "time"

// Config holds the gateway credentials the service needs for checkout.
// KeyID is handed to the client; KeySecret verifies checkout signatures.
type Config struct {
	KeyID         string        `env:"GATEWAY_KEY_ID"`
	KeySecret     string        `env:"GATEWAY_KEY_SECRET"`
	ReceiptPrefix string        `env:"PAYMENT_RECEIPT_PREFIX" envDefault:"rcpt"`
	FetchTimeout  time.Duration `env:"PAYMENT_FETCH_TIMEOUT" envDefault:"10s"`
}
