package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/validator"
)

// Recipient is either a user (UserID set) or every holder of a role (only UserRole set).
type Recipient struct {
	UserID   string `json:"user_id,omitempty"`
	UserRole string `json:"user_role,omitempty"`
}

// Broadcast reports whether the recipient is a whole role.
func (r Recipient) Broadcast() bool {
	return r.UserID == "" && r.UserRole != ""
}

// Payload is the content shared by every notification produced from an event.
type Payload struct {
	Title     string                 `json:"title"`
	Message   string                 `json:"message,omitempty"`
	RelatedID string                 `json:"related_id,omitempty"`
	ActionURL string                 `json:"action_url,omitempty"`
	Priority  notifications.Priority `json:"priority,omitempty"`
}

// Event is a domain occurrence with an anchor time notifications are scheduled around.
type Event struct {
	Category   notifications.Type `json:"category"`
	AnchorTime time.Time          `json:"anchor_time"`
	Recipients []Recipient        `json:"recipients"`
	Payload    Payload            `json:"payload"`
}

// Validate reports every problem with the event at once.
func (e Event) Validate() error {
	rules := []validator.Rule{
		validator.InList("category", e.Category, notifications.Types),
		validator.RequiredTime("anchor_time", e.AnchorTime),
		validator.RequiredSlice("recipients", e.Recipients),
		validator.RequiredString("payload.title", e.Payload.Title),
	}
	if e.Payload.Priority != "" {
		rules = append(rules, validator.InList("payload.priority", e.Payload.Priority,
			[]notifications.Priority{notifications.PriorityLow, notifications.PriorityMedium, notifications.PriorityHigh}))
	}
	for i, r := range e.Recipients {
		rules = append(rules, validator.AnyOf(fmt.Sprintf("recipients[%d]", i), r.UserID, r.UserRole))
	}

	if err := validator.Apply(rules...); err != nil {
		return errors.Join(ErrInvalidEvent, err)
	}
	return nil
}
