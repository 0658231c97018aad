package scheduler

import "time"

// Config holds scheduler tuning loaded from the environment.
type Config struct {
	MaxConcurrentFires int           `env:"SCHEDULER_MAX_CONCURRENT_FIRES" envDefault:"16"`
	FireTimeout        time.Duration `env:"SCHEDULER_FIRE_TIMEOUT" envDefault:"1m"`
}

// DefaultConfig returns the defaults used when no Config is supplied.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentFires: 16,
		FireTimeout:        time.Minute,
	}
}
