package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/classnotify/pkg/channel"
	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/policy"
	"github.com/dmitrymomot/classnotify/pkg/scheduler"
	"github.com/dmitrymomot/classnotify/pkg/settings"
)

// Registration describes one trigger created for an event.
type Registration struct {
	TriggerID string                  `json:"trigger_id"`
	Rule      string                  `json:"rule"`
	Recipient policy.Recipient        `json:"recipient"`
	FireAt    time.Time               `json:"fire_at"`
	Channels  []notifications.Channel `json:"channels"`
}

// Engine is the single entry point for event producers and the notification panel.
type Engine struct {
	resolver      *policy.Resolver
	scheduler     *scheduler.Scheduler
	notifications *notifications.Manager
	settings      *settings.Manager
	hub           *channel.Hub
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEngineLogger sets the logger for the Engine.
func WithEngineLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithHub exposes live SYSTEM notifications through Subscribe.
func WithHub(h *channel.Hub) Option {
	return func(e *Engine) {
		e.hub = h
	}
}

func New(
	resolver *policy.Resolver,
	sched *scheduler.Scheduler,
	notifs *notifications.Manager,
	prefs *settings.Manager,
	opts ...Option,
) *Engine {
	e := &Engine{
		resolver:      resolver,
		scheduler:     sched,
		notifications: notifs,
		settings:      prefs,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("engine"))
	return e
}

// RegisterEvent resolves ev into triggers and schedules them. If any trigger
// fails to register, the ones already registered for ev are cancelled.
func (e *Engine) RegisterEvent(ctx context.Context, ev policy.Event) ([]Registration, error) {
	tuples, err := e.resolver.Resolve(ctx, ev)
	if err != nil {
		return nil, err
	}

	regs := make([]Registration, 0, len(tuples))
	for _, tp := range tuples {
		id, err := e.scheduler.Register(ctx, scheduler.Trigger{
			Draft:    tp.Draft,
			FireAt:   tp.FireAt,
			Channels: tp.Channels,
		})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("register trigger for rule %q: %w", tp.Rule, err), e.rollback(ctx, regs))
		}
		regs = append(regs, Registration{
			TriggerID: id,
			Rule:      tp.Rule,
			Recipient: tp.Recipient,
			FireAt:    tp.FireAt,
			Channels:  tp.Channels,
		})
	}

	e.logger.LogAttrs(ctx, slog.LevelInfo, "event registered",
		logger.Category(ev.Category),
		logger.RelatedID(ev.Payload.RelatedID),
		slog.Int("triggers", len(regs)),
	)
	return regs, nil
}

func (e *Engine) rollback(ctx context.Context, regs []Registration) error {
	var errs []error
	for _, r := range regs {
		if _, err := e.scheduler.Cancel(ctx, r.TriggerID); err != nil {
			errs = append(errs, fmt.Errorf("rollback trigger %s: %w", r.TriggerID, err))
		}
	}
	return errors.Join(errs...)
}

// CancelForRelatedID cancels every pending trigger tied to relatedID and returns how many were cancelled.
func (e *Engine) CancelForRelatedID(ctx context.Context, relatedID string) (int, error) {
	if relatedID == "" {
		return 0, fmt.Errorf("%w: related id is required", policy.ErrInvalidEvent)
	}
	n, err := e.scheduler.CancelRelated(ctx, relatedID)
	if err != nil {
		return n, err
	}
	e.logger.LogAttrs(ctx, slog.LevelInfo, "triggers cancelled",
		logger.RelatedID(relatedID),
		slog.Int("cancelled", n),
	)
	return n, nil
}

// RescheduleEvent registers ev and then cancels the triggers that were pending
// for its related id before the call. When registration fails the earlier
// triggers stay pending untouched.
func (e *Engine) RescheduleEvent(ctx context.Context, ev policy.Event) ([]Registration, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	relatedID := ev.Payload.RelatedID

	previous, err := e.scheduler.PendingRelated(ctx, relatedID)
	if err != nil {
		return nil, err
	}

	regs, err := e.RegisterEvent(ctx, ev)
	if err != nil {
		return nil, err
	}
	if len(previous) == 0 {
		return regs, nil
	}

	// The new triggers are live at this point; a failed cancel leaves a stale
	// trigger pending rather than dropping reminders.
	n, err := e.scheduler.CancelAll(ctx, relatedID, previous)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "failed to cancel replaced triggers",
			logger.RelatedID(relatedID),
			slog.Int("cancelled", n),
			slog.Int("replaced", len(previous)),
			logger.Error(err),
		)
	}
	return regs, nil
}

// Trigger returns a scheduled trigger by id.
func (e *Engine) Trigger(ctx context.Context, id string) (scheduler.Trigger, error) {
	return e.scheduler.Get(ctx, id)
}

// CancelTrigger cancels a single trigger. It reports false when the trigger already fired.
func (e *Engine) CancelTrigger(ctx context.Context, id string) (bool, error) {
	return e.scheduler.Cancel(ctx, id)
}

func (e *Engine) ListNotifications(ctx context.Context, caller notifications.Identity, filter notifications.Filter) ([]notifications.Notification, error) {
	return e.notifications.List(ctx, caller, filter)
}

func (e *Engine) GetNotification(ctx context.Context, caller notifications.Identity, id string) (*notifications.Notification, error) {
	return e.notifications.Get(ctx, caller, id)
}

func (e *Engine) MarkRead(ctx context.Context, caller notifications.Identity, id string) error {
	return e.notifications.MarkRead(ctx, caller, id)
}

func (e *Engine) MarkAllRead(ctx context.Context, caller notifications.Identity) (int, error) {
	return e.notifications.MarkAllRead(ctx, caller)
}

func (e *Engine) DeleteNotification(ctx context.Context, caller notifications.Identity, id string) error {
	return e.notifications.Delete(ctx, caller, id)
}

func (e *Engine) BulkAction(ctx context.Context, caller notifications.Identity, ids []string, action notifications.BulkAction) ([]notifications.BulkResult, error) {
	return e.notifications.BulkAction(ctx, caller, ids, action)
}

func (e *Engine) CountUnread(ctx context.Context, caller notifications.Identity) (int, error) {
	return e.notifications.CountUnread(ctx, caller)
}

// PurgeDeleted physically removes notifications soft-deleted longer than retention ago.
func (e *Engine) PurgeDeleted(ctx context.Context, retention time.Duration) (int, error) {
	return e.notifications.Purge(ctx, retention)
}

func (e *Engine) GetSettings(ctx context.Context, userID string) (settings.Settings, error) {
	return e.settings.Get(ctx, userID)
}

// UpdateSettings merges patch into the stored settings. Triggers already
// registered keep the fire times computed when they were registered.
func (e *Engine) UpdateSettings(ctx context.Context, userID string, patch settings.Patch) (settings.Settings, error) {
	return e.settings.Update(ctx, userID, patch)
}

func (e *Engine) ResetSettings(ctx context.Context, userID string) (settings.Settings, error) {
	return e.settings.Reset(ctx, userID)
}

// Subscribe streams SYSTEM notifications visible to caller as they are delivered.
// It fails with ErrLiveUnavailable when no hub is configured.
func (e *Engine) Subscribe(ctx context.Context, caller notifications.Identity) (*channel.Subscription, error) {
	if e.hub == nil {
		return nil, ErrLiveUnavailable
	}
	if caller.UserID == "" && caller.Role == "" {
		return nil, notifications.ErrMissingIdentity
	}
	return e.hub.Subscribe(ctx, caller), nil
}
