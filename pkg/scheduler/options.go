package scheduler

import (
	"log/slog"
	"time"
)

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	maxConcurrentFires int
	fireTimeout        time.Duration
	logger             *slog.Logger
	now                func() time.Time
}

func defaultOptions() *options {
	cfg := DefaultConfig()
	return &options{
		maxConcurrentFires: cfg.MaxConcurrentFires,
		fireTimeout:        cfg.FireTimeout,
		logger:             slog.Default(),
		now:                time.Now,
	}
}

// WithConfig applies values from cfg, ignoring zero fields.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.MaxConcurrentFires > 0 {
			o.maxConcurrentFires = cfg.MaxConcurrentFires
		}
		if cfg.FireTimeout > 0 {
			o.fireTimeout = cfg.FireTimeout
		}
	}
}

// WithMaxConcurrentFires bounds how many fired triggers are handled at once.
func WithMaxConcurrentFires(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentFires = n
		}
	}
}

// WithFireTimeout bounds a single handler call.
func WithFireTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fireTimeout = d
		}
	}
}

// WithSchedulerLogger sets the logger for the Scheduler.
func WithSchedulerLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
