package dispatcher

import "time"

// Config bounds the per-channel send retry.
type Config struct {
	MaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
	RetryBase   time.Duration `env:"DISPATCH_RETRY_BASE" envDefault:"500ms"`
	RetryCap    time.Duration `env:"DISPATCH_RETRY_CAP" envDefault:"10s"`
}

// DefaultConfig returns the defaults used when no Config is supplied.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		RetryBase:   500 * time.Millisecond,
		RetryCap:    10 * time.Second,
	}
}
