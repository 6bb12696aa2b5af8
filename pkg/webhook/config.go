package webhook

import "time"

// Config holds webhook processing settings.
type Config struct {
	Secret            string        `env:"GATEWAY_WEBHOOK_SECRET"`
	MaxAttempts       int           `env:"WEBHOOK_MAX_ATTEMPTS" envDefault:"5"`
	BackoffBase       time.Duration `env:"WEBHOOK_BACKOFF_BASE" envDefault:"1s"`
	BackoffMultiplier float64       `env:"WEBHOOK_BACKOFF_MULTIPLIER" envDefault:"2"`
	BackoffMax        time.Duration `env:"WEBHOOK_BACKOFF_MAX" envDefault:"60s"`
	IdlePoll          time.Duration `env:"WEBHOOK_IDLE_POLL" envDefault:"1s"`
	RedisPrefix       string        `env:"WEBHOOK_REDIS_PREFIX" envDefault:"billing:webhooks"`
	FailedRetention   int           `env:"WEBHOOK_FAILED_RETENTION" envDefault:"1000"`
}

// Backoff builds the retry strategy described by the config.
func (c Config) Backoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: c.BackoffBase,
		MaxInterval:     c.BackoffMax,
		Multiplier:      c.BackoffMultiplier,
	}
}
