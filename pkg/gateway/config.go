package gateway

import "time"

// Config holds gateway credentials and client limits.
type Config struct {
	BaseURL         string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.razorpay.com"`
	KeyID           string        `env:"GATEWAY_KEY_ID"`
	KeySecret       string        `env:"GATEWAY_KEY_SECRET"`
	Timeout         time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	BreakerFailures int           `env:"GATEWAY_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"GATEWAY_BREAKER_COOLDOWN" envDefault:"30s"`
}
