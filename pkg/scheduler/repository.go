package scheduler

import (
	"context"
	"time"
)

// Repository persists triggers so pending ones survive restarts.
type Repository interface {
	// Save inserts a new pending trigger.
	Save(ctx context.Context, t Trigger) error

	// UpdateStatus settles a pending trigger.
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error

	// Get returns ErrTriggerNotFound for unknown ids.
	Get(ctx context.Context, id string) (Trigger, error)

	// ListPending returns every trigger still pending.
	ListPending(ctx context.Context) ([]Trigger, error)

	// ListPendingRelated returns the pending triggers created for relatedID.
	ListPendingRelated(ctx context.Context, relatedID string) ([]Trigger, error)
}
