package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/classnotify/pkg/channel"
	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/scheduler"
)

// Outcome is the result of delivering one channel copy of a fired trigger.
type Outcome struct {
	Channel  notifications.Channel
	RecordID string
	Status   notifications.DeliveryStatus
	Attempts int
	Err      error
}

// Dispatcher turns a fired trigger into stored per-channel records and sends them.
type Dispatcher struct {
	storage  notifications.Storage
	registry *channel.Registry
	logger   *slog.Logger
	now      func() time.Time

	maxAttempts int
	retryBase   time.Duration
	retryCap    time.Duration
}

func New(storage notifications.Storage, registry *channel.Registry, opts ...Option) *Dispatcher {
	cfg := DefaultConfig()
	d := &Dispatcher{
		storage:     storage,
		registry:    registry,
		logger:      slog.Default(),
		now:         time.Now,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
		retryCap:    cfg.RetryCap,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("dispatcher"))
	if d.registry == nil {
		d.registry = channel.NewRegistry()
	}
	return d
}

// Handle implements scheduler.Handler. Channel failures are recorded on the
// records and never returned; only a storage fault fails the call.
func (d *Dispatcher) Handle(ctx context.Context, t scheduler.Trigger) error {
	var errs []error
	for _, o := range d.Dispatch(ctx, t) {
		if o.Status == "" && o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Channel, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Dispatch delivers every channel of t concurrently and returns one outcome per channel.
// An outcome with an empty Status means no record was written.
func (d *Dispatcher) Dispatch(ctx context.Context, t scheduler.Trigger) []Outcome {
	out := make([]Outcome, len(t.Channels))
	now := d.now()

	var wg sync.WaitGroup
	for i, ch := range t.Channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = d.deliver(ctx, t, ch, now)
		}()
	}
	wg.Wait()
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, t scheduler.Trigger, ch notifications.Channel, now time.Time) Outcome {
	n := notifications.New(t.ID, t.Draft, ch, now)
	o := Outcome{Channel: ch, RecordID: n.ID}
	log := d.logger.With(
		logger.TriggerID(t.ID),
		logger.NotificationID(n.ID),
		logger.Channel(ch),
	)

	if err := d.storage.Create(ctx, n); err != nil {
		o.Err = err
		if errors.Is(err, notifications.ErrDuplicateNotification) {
			log.ErrorContext(ctx, "notification record already exists, trigger fired twice",
				logger.Error(errors.Join(scheduler.ErrSchedulerFault, err)),
			)
		} else {
			log.ErrorContext(ctx, "failed to store notification", logger.Error(err))
		}
		return o
	}

	adapter, ok := d.registry.Get(ch)
	switch {
	case !ok && ch == notifications.ChannelSystem:
		o.Status = notifications.DeliveryDelivered
	case !ok:
		o.Status = notifications.DeliveryFailed
		o.Err = fmt.Errorf("%w: %s", channel.ErrNoAdapter, ch)
	default:
		o.Attempts, o.Err = d.send(ctx, adapter, n)
		o.Status = notifications.DeliveryDelivered
		if o.Err != nil {
			o.Status = notifications.DeliveryFailed
		}
	}

	var errMsg string
	if o.Err != nil {
		errMsg = o.Err.Error()
		log.WarnContext(ctx, "notification delivery failed",
			logger.Attempts(o.Attempts),
			logger.Error(o.Err),
		)
	} else {
		log.DebugContext(ctx, "notification delivered", logger.Attempts(o.Attempts))
	}

	if err := d.storage.SetDeliveryStatus(ctx, n.ID, o.Status, o.Attempts, errMsg); err != nil {
		log.ErrorContext(ctx, "failed to record delivery status", logger.Error(err))
	}
	return o
}

// send calls the adapter with capped exponential backoff. Permanent errors stop at once.
func (d *Dispatcher) send(ctx context.Context, a channel.Adapter, n notifications.Notification) (int, error) {
	b := retry.NewExponential(d.retryBase)
	b = retry.WithCappedDuration(d.retryCap, b)
	b = retry.WithMaxRetries(uint64(max(d.maxAttempts-1, 0)), b)

	// One Progress spans every attempt so broadcast contacts that already
	// received the record are not sent it again.
	ctx, _ = channel.WithProgress(ctx)

	attempts := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		err := a.Send(ctx, n)
		if err == nil || channel.IsPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	return attempts, err
}
