package settings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/classnotify/pkg/logger"
)

// Manager reads and writes per-user settings, creating defaults on first use.
type Manager struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

func NewManager(storage Storage, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the stored settings, persisting defaults when none exist.
func (m *Manager) Get(ctx context.Context, userID string) (Settings, error) {
	if userID == "" {
		return Settings{}, ErrMissingUserID
	}

	st, err := m.storage.Get(ctx, userID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrSettingsNotFound) {
		return Settings{}, err
	}

	return m.storage.Modify(ctx, userID, func(cur Settings, found bool) (Settings, error) {
		if found {
			return cur, nil
		}
		d := Defaults()
		d.UpdatedAt = m.now()
		return d, nil
	})
}

// Update merges patch into the user's settings and returns the result.
func (m *Manager) Update(ctx context.Context, userID string, patch Patch) (Settings, error) {
	if userID == "" {
		return Settings{}, ErrMissingUserID
	}

	st, err := m.storage.Modify(ctx, userID, func(cur Settings, found bool) (Settings, error) {
		if !found {
			cur = Defaults()
		}
		next := patch.Apply(cur)
		if err := next.Validate(); err != nil {
			return Settings{}, err
		}
		next.UpdatedAt = m.now()
		return next, nil
	})
	if err != nil {
		return Settings{}, err
	}

	m.logger.LogAttrs(ctx, slog.LevelDebug, "notification settings updated", logger.UserID(userID))
	return st, nil
}

// Reset restores defaults.
func (m *Manager) Reset(ctx context.Context, userID string) (Settings, error) {
	if userID == "" {
		return Settings{}, ErrMissingUserID
	}
	return m.storage.Modify(ctx, userID, func(Settings, bool) (Settings, error) {
		d := Defaults()
		d.UpdatedAt = m.now()
		return d, nil
	})
}

// ForRecipient returns the settings used to schedule for a recipient.
// Role broadcasts have no user and get defaults without touching storage.
func (m *Manager) ForRecipient(ctx context.Context, userID string) (Settings, error) {
	if userID == "" {
		return Defaults(), nil
	}
	return m.Get(ctx, userID)
}
