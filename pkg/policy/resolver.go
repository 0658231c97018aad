package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/classnotify/pkg/logger"
	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/settings"
)

// SettingsSource provides the preferences a recipient's notifications are scheduled with.
// An empty userID stands for a role broadcast and should yield defaults.
type SettingsSource interface {
	ForRecipient(ctx context.Context, userID string) (settings.Settings, error)
}

// Tuple is one (recipient, fire time, channels) result of resolving an event.
type Tuple struct {
	Rule      string                  `json:"rule"`
	Recipient Recipient               `json:"recipient"`
	FireAt    time.Time               `json:"fire_at"`
	Channels  []notifications.Channel `json:"channels"`
	Draft     notifications.Draft     `json:"draft"`
}

// Resolver turns events into scheduling tuples. It never writes to any store.
type Resolver struct {
	source SettingsSource
	table  Table
	logger *slog.Logger
}

type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the Resolver.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithTable replaces the embedded default rule table.
func WithTable(t Table) ResolverOption {
	return func(r *Resolver) {
		r.table = t
	}
}

func NewResolver(source SettingsSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source: source,
		table:  DefaultTable(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes every tuple for ev. Fire times already in the past are
// still returned; the scheduler fires them immediately.
func (r *Resolver) Resolve(ctx context.Context, ev Event) ([]Tuple, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	var tuples []Tuple
	seen := make(map[Recipient]struct{}, len(ev.Recipients))
	for _, rcpt := range ev.Recipients {
		if _, dup := seen[rcpt]; dup {
			continue
		}
		seen[rcpt] = struct{}{}

		prefs, err := r.source.ForRecipient(ctx, rcpt.UserID)
		if err != nil {
			return nil, fmt.Errorf("load settings for recipient %q: %w", rcpt.UserID, err)
		}

		for _, rule := range r.table.Rules {
			if rule.Category != ev.Category || !rule.appliesTo(rcpt.UserRole) || !rule.open(prefs) {
				continue
			}
			channels := rule.channels(prefs)
			if len(channels) == 0 {
				continue
			}

			fireAt := ev.AnchorTime.Add(-rule.offset(prefs))
			if rule.Anchor == AnchorAfter {
				fireAt = ev.AnchorTime.Add(rule.offset(prefs))
			}

			tuples = append(tuples, Tuple{
				Rule:      rule.Name,
				Recipient: rcpt,
				FireAt:    fireAt,
				Channels:  channels,
				Draft:     draft(ev, rule, rcpt),
			})
		}
	}

	r.logger.LogAttrs(ctx, slog.LevelDebug, "event resolved",
		logger.Category(ev.Category),
		logger.RelatedID(ev.Payload.RelatedID),
		slog.Int("tuples", len(tuples)),
	)
	return tuples, nil
}

func draft(ev Event, rule Rule, rcpt Recipient) notifications.Draft {
	priority := ev.Payload.Priority
	if priority == "" {
		priority = rule.Priority
	}
	if priority == "" {
		priority = notifications.PriorityMedium
	}
	message := ev.Payload.Message
	if message == "" {
		message = rule.Message
	}
	return notifications.Draft{
		Type:      ev.Category,
		Title:     ev.Payload.Title,
		Message:   message,
		Priority:  priority,
		UserID:    rcpt.UserID,
		UserRole:  rcpt.UserRole,
		RelatedID: ev.Payload.RelatedID,
		ActionURL: ev.Payload.ActionURL,
	}
}
