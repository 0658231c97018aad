package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepository keeps triggers in a map. Pending triggers do not survive a
// process restart with this repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	triggers map[string]Trigger
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{triggers: make(map[string]Trigger)}
}

func (r *MemoryRepository) Save(ctx context.Context, t Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.triggers[t.ID]; exists {
		return ErrDuplicateTrigger
	}
	t.Channels = slices.Clone(t.Channels)
	r.triggers[t.ID] = t
	return nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.triggers[id]
	if !ok {
		return ErrTriggerNotFound
	}
	if err := t.transition(status, at); err != nil {
		return err
	}
	r.triggers[id] = t
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.triggers[id]
	if !ok {
		return Trigger{}, ErrTriggerNotFound
	}
	return t, nil
}

func (r *MemoryRepository) ListPending(ctx context.Context) ([]Trigger, error) {
	return r.pending(func(Trigger) bool { return true }), nil
}

func (r *MemoryRepository) ListPendingRelated(ctx context.Context, relatedID string) ([]Trigger, error) {
	return r.pending(func(t Trigger) bool { return t.Draft.RelatedID == relatedID }), nil
}

func (r *MemoryRepository) pending(match func(Trigger) bool) []Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Trigger
	for _, t := range r.triggers {
		if t.Status == StatusPending && match(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b Trigger) int {
		return a.FireAt.Compare(b.FireAt)
	})
	return out
}
