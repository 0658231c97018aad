package scheduler

import (
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

// Status of a trigger.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFired     Status = "fired"
	StatusCancelled Status = "cancelled"
)

// transitions lists the legal status changes. Fired and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending: {StatusFired, StatusCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Trigger is a scheduled intent to emit one logical notification over a set of channels.
type Trigger struct {
	ID        string                  `json:"id"`
	Draft     notifications.Draft     `json:"draft"`
	FireAt    time.Time               `json:"fire_at"`
	Channels  []notifications.Channel `json:"channels"`
	Status    Status                  `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	SettledAt *time.Time              `json:"settled_at,omitempty"`
}

// transition moves t to next or fails with ErrInvalidTransition.
func (t *Trigger) transition(next Status, at time.Time) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	t.SettledAt = &at
	return nil
}

func (t Trigger) validate() error {
	switch {
	case t.FireAt.IsZero():
		return fmt.Errorf("%w: fire time is required", ErrInvalidTrigger)
	case len(t.Channels) == 0:
		return fmt.Errorf("%w: at least one channel is required", ErrInvalidTrigger)
	case t.Draft.UserID == "" && t.Draft.UserRole == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidTrigger)
	case t.Draft.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidTrigger)
	}
	for _, ch := range t.Channels {
		if !ch.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidTrigger, ch)
		}
	}
	return nil
}
