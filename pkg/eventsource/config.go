package eventsource

import "time"

// Config configures the Kafka domain event consumer. With no brokers the consumer is disabled.
type Config struct {
	Brokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	Topic          string        `env:"KAFKA_EVENTS_TOPIC" envDefault:"school.events"`
	GroupID        string        `env:"KAFKA_GROUP_ID" envDefault:"classnotify"`
	MinBytes       int           `env:"KAFKA_MIN_BYTES" envDefault:"1"`
	MaxBytes       int           `env:"KAFKA_MAX_BYTES" envDefault:"10000000"`
	HandleAttempts int           `env:"KAFKA_HANDLE_ATTEMPTS" envDefault:"5"`
	RetryInterval  time.Duration `env:"KAFKA_RETRY_INTERVAL" envDefault:"1s"`
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}
