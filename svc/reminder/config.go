package reminder

import "time"

type Config struct {
	Interval     time.Duration `env:"REMINDER_INTERVAL" envDefault:"24h"`
	Thresholds   []int         `env:"REMINDER_THRESHOLDS" envDefault:"1,3,7" envSeparator:","`
	RunOnStart   bool          `env:"REMINDER_RUN_ON_START" envDefault:"false"`
	ContactsFile string        `env:"REMINDER_CONTACTS_FILE"`
	RedisPrefix  string        `env:"REMINDER_REDIS_PREFIX" envDefault:"billing:reminders"`
}

// DefaultConfig is used when no environment is loaded.
func DefaultConfig() Config {
	return Config{Interval: 24 * time.Hour, Thresholds: []int{1, 3, 7}}
}
