package eventsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/classnotify/pkg/engine"
	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/policy"
	"github.com/dmitrymomot/classnotify/pkg/requestid"
)

// EventHandler is the part of the engine the consumer drives.
type EventHandler interface {
	RescheduleEvent(ctx context.Context, ev policy.Event) ([]engine.Registration, error)
	CancelForRelatedID(ctx context.Context, relatedID string) (int, error)
}

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads domain events and feeds them to the engine. A message is
// committed once handled or once it is known it can never be handled.
type Consumer struct {
	reader   MessageReader
	handler  EventHandler
	logger   *slog.Logger
	attempts int
	interval time.Duration
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithConsumerLogger sets the logger for the Consumer.
func WithConsumerLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithReader replaces the Kafka reader, mostly for tests.
func WithReader(r MessageReader) Option {
	return func(c *Consumer) {
		c.reader = r
	}
}

// NewConsumer builds a consumer-group reader from cfg.
func NewConsumer(cfg Config, handler EventHandler, opts ...Option) (*Consumer, error) {
	c := &Consumer{
		handler:  handler,
		logger:   slog.Default(),
		attempts: max(cfg.HandleAttempts, 1),
		interval: cfg.RetryInterval,
	}
	if c.interval <= 0 {
		c.interval = time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("eventsource"))

	if c.reader == nil {
		if !cfg.Enabled() {
			return nil, ErrNoBrokers
		}
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	return c, nil
}

// Run consumes until ctx is done. It is shaped for errgroup.
func (c *Consumer) Run(ctx context.Context) func() error {
	return func() error {
		defer func() {
			if err := c.reader.Close(); err != nil {
				c.logger.Error("failed to close kafka reader", logger.Error(err))
			}
		}()

		c.logger.InfoContext(ctx, "event consumer started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("event consumer stopped")
					return nil
				}
				c.logger.ErrorContext(ctx, "kafka fetch failed", logger.Error(err))
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(c.interval):
				}
				continue
			}

			c.process(ctx, msg)

			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.ErrorContext(ctx, "kafka commit failed",
					slog.Int64("offset", msg.Offset),
					logger.Error(err),
				)
			}
		}
	}
}

// process handles one message, retrying errors that are not the message's fault.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.logger.With(
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	ctx, _ = requestid.Ensure(ctx, correlationID(msg))

	env, err := Decode(msg.Value)
	if err != nil {
		log.WarnContext(ctx, "skipping malformed event", logger.Error(err))
		return
	}

	b := retry.WithMaxRetries(uint64(c.attempts-1), retry.NewConstant(c.interval))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.Handle(ctx, env)
		if err == nil || errors.Is(err, policy.ErrInvalidEvent) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		log.ErrorContext(ctx, "dropping event after failed handling",
			slog.String("action", string(env.Action)),
			logger.RelatedID(env.relatedID()),
			logger.Error(err),
		)
	}
}

// correlationID prefers the producer's X-Request-ID header and falls back to
// the message coordinates.
func correlationID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == requestid.Header && requestid.Valid(string(h.Value)) {
			return string(h.Value)
		}
	}
	return fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
}

// Handle applies a decoded envelope to the engine.
func (c *Consumer) Handle(ctx context.Context, env Envelope) error {
	switch env.Action {
	case ActionUpsert, ActionReschedule:
		regs, err := c.handler.RescheduleEvent(ctx, *env.Event)
		if err != nil {
			return err
		}
		c.logger.DebugContext(ctx, "event applied",
			slog.String("action", string(env.Action)),
			logger.RelatedID(env.relatedID()),
			slog.Int("triggers", len(regs)),
		)
		return nil
	case ActionCancel:
		_, err := c.handler.CancelForRelatedID(ctx, env.relatedID())
		return err
	}
	return ErrUnknownAction
}
