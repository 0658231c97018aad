package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/classnotify/pkg/logger"
)

// BulkAction names an operation applied to many notifications at once.
type BulkAction string

const (
	BulkMarkRead BulkAction = "mark_read"
	BulkDelete   BulkAction = "delete"
)

// BulkResult is the per-id outcome of Manager.BulkAction.
type BulkResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Manager is the query and mutation surface consumers use on the store.
type Manager struct {
	storage Storage
	logger  *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a notification manager over storage.
func NewManager(storage Storage, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage: storage,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Get(ctx context.Context, caller Identity, id string) (*Notification, error) {
	if err := checkIdentity(caller); err != nil {
		return nil, err
	}
	return m.storage.Get(ctx, caller, id)
}

func (m *Manager) List(ctx context.Context, caller Identity, filter Filter) ([]Notification, error) {
	if err := checkIdentity(caller); err != nil {
		return nil, err
	}
	return m.storage.List(ctx, caller, filter)
}

func (m *Manager) MarkRead(ctx context.Context, caller Identity, id string) error {
	if err := checkIdentity(caller); err != nil {
		return err
	}
	return m.storage.MarkRead(ctx, caller, id)
}

// MarkAllRead marks every visible notification as read and returns how many changed.
func (m *Manager) MarkAllRead(ctx context.Context, caller Identity) (int, error) {
	if err := checkIdentity(caller); err != nil {
		return 0, err
	}
	n, err := m.storage.MarkAllRead(ctx, caller)
	if err != nil {
		return 0, err
	}
	m.logger.LogAttrs(ctx, slog.LevelDebug, "notifications marked read",
		logger.UserID(caller.UserID),
		logger.Role(caller.Role),
		slog.Int("count", n),
	)
	return n, nil
}

func (m *Manager) Delete(ctx context.Context, caller Identity, id string) error {
	if err := checkIdentity(caller); err != nil {
		return err
	}
	return m.storage.Delete(ctx, caller, id)
}

func (m *Manager) CountUnread(ctx context.Context, caller Identity) (int, error) {
	if err := checkIdentity(caller); err != nil {
		return 0, err
	}
	return m.storage.CountUnread(ctx, caller)
}

// BulkAction applies action to each id independently. A failure on one id does
// not stop the rest; the returned slice holds one result per input id in order.
func (m *Manager) BulkAction(ctx context.Context, caller Identity, ids []string, action BulkAction) ([]BulkResult, error) {
	if err := checkIdentity(caller); err != nil {
		return nil, err
	}

	var apply func(context.Context, Identity, string) error
	switch action {
	case BulkMarkRead:
		apply = m.storage.MarkRead
	case BulkDelete:
		apply = m.storage.Delete
	default:
		return nil, ErrUnknownBulkAction
	}

	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		res := BulkResult{ID: id, OK: true}
		if err := apply(ctx, caller, id); err != nil {
			res.OK = false
			res.Err = err
			res.Error = err.Error()
			if !errors.Is(err, ErrNotificationNotFound) {
				m.logger.LogAttrs(ctx, slog.LevelError, "bulk action failed",
					logger.NotificationID(id),
					logger.UserID(caller.UserID),
					slog.String("action", string(action)),
					logger.Error(err),
				)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// Purge removes records soft-deleted more than retention ago.
func (m *Manager) Purge(ctx context.Context, retention time.Duration) (int, error) {
	n, err := m.storage.Purge(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.LogAttrs(ctx, slog.LevelInfo, "purged deleted notifications", slog.Int("count", n))
	}
	return n, nil
}

// Storage returns the underlying storage.
func (m *Manager) Storage() Storage {
	return m.storage
}

func checkIdentity(caller Identity) error {
	if caller.UserID == "" && caller.Role == "" {
		return ErrMissingIdentity
	}
	return nil
}
