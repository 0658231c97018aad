package settings

import "context"

// ModifyFunc computes the next settings from the current ones.
// found is false when the user has no stored settings yet.
type ModifyFunc func(current Settings, found bool) (Settings, error)

// Storage persists settings keyed by user id.
type Storage interface {
	// Get returns ErrSettingsNotFound when nothing is stored for userID.
	Get(ctx context.Context, userID string) (Settings, error)

	// Modify runs fn and stores its result atomically with respect to other writers.
	// An error from fn aborts the write and is returned unchanged.
	Modify(ctx context.Context, userID string, fn ModifyFunc) (Settings, error)
}
