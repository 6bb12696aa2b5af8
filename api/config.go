package api

import "time"

type Config struct {
	// AdminToken protects /admin. Empty disables the check.
	AdminToken     string        `env:"ADMIN_TOKEN"`
	MaxBodyBytes   int64         `env:"API_MAX_BODY_BYTES" envDefault:"1048576"`
	RequestTimeout time.Duration `env:"API_REQUEST_TIMEOUT" envDefault:"30s"`
	HealthTimeout  time.Duration `env:"API_HEALTH_TIMEOUT" envDefault:"2s"`
}
