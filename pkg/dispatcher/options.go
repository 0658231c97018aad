package dispatcher

import (
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfig applies values from cfg, ignoring zero fields.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) {
		if cfg.MaxAttempts > 0 {
			d.maxAttempts = cfg.MaxAttempts
		}
		if cfg.RetryBase > 0 {
			d.retryBase = cfg.RetryBase
		}
		if cfg.RetryCap > 0 {
			d.retryCap = cfg.RetryCap
		}
	}
}

// WithDispatcherLogger sets the logger for the Dispatcher.
func WithDispatcherLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}
