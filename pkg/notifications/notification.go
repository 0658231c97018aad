package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Type is the kind of school activity a notification is about.
type Type string

const (
	TypeOnlineLesson Type = "online_lesson"
	TypeAssignment   Type = "assignment"
	TypeEvent        Type = "event"
	TypeTask         Type = "task"
	TypeSchedule     Type = "schedule"
	TypeFeeReminder  Type = "fee_reminder"
	TypeExam         Type = "exam"
	TypeMeeting      Type = "meeting"
)

// Types lists every supported notification type.
var Types = []Type{
	TypeOnlineLesson, TypeAssignment, TypeEvent, TypeTask,
	TypeSchedule, TypeFeeReminder, TypeExam, TypeMeeting,
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelSMS    Channel = "sms"
	ChannelPush   Channel = "push"
	ChannelSystem Channel = "system"
)

// Channels lists every channel in canonical order.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelSystem}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelSystem:
		return true
	}
	return false
}

// Priority of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DeliveryStatus tracks what happened to one channel copy.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Identity is the caller on whose behalf the store is queried.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Draft is the notification content carried by a scheduled trigger.
// It becomes one Notification per channel when the trigger fires.
type Draft struct {
	Type      Type     `json:"type"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Priority  Priority `json:"priority"`
	UserID    string   `json:"user_id,omitempty"`
	UserRole  string   `json:"user_role,omitempty"`
	RelatedID string   `json:"related_id,omitempty"`
	ActionURL string   `json:"action_url,omitempty"`
}

// Broadcast reports whether the draft targets a whole role rather than a user.
func (d Draft) Broadcast() bool {
	return d.UserID == "" && d.UserRole != ""
}

// Notification is one persisted per-channel delivery record.
type Notification struct {
	ID        string   `json:"id"`
	LogicalID string   `json:"logical_id"`
	Type      Type     `json:"type"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Channel   Channel  `json:"channel"`
	Priority  Priority `json:"priority"`
	UserID    string   `json:"user_id,omitempty"`
	UserRole  string   `json:"user_role,omitempty"`
	RelatedID string   `json:"related_id,omitempty"`
	ActionURL string   `json:"action_url,omitempty"`

	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	Deleted   bool       `json:"-"`
	DeletedAt *time.Time `json:"-"`

	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	DeliveryError  string         `json:"delivery_error,omitempty"`
	Attempts       int            `json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
}

// recordNamespace seeds the deterministic per-channel record ids.
var recordNamespace = uuid.MustParse("5b2f7a1c-3d4e-4f60-9a8b-1c2d3e4f5a6b")

// RecordID returns the id of the copy of logicalID delivered over ch.
// The same pair always yields the same id.
func RecordID(logicalID string, ch Channel) string {
	return uuid.NewSHA1(recordNamespace, []byte(logicalID+":"+string(ch))).String()
}

// New builds the pending record for one channel of a fired draft.
func New(logicalID string, d Draft, ch Channel, now time.Time) Notification {
	return Notification{
		ID:             RecordID(logicalID, ch),
		LogicalID:      logicalID,
		Type:           d.Type,
		Title:          d.Title,
		Message:        d.Message,
		Channel:        ch,
		Priority:       d.Priority,
		UserID:         d.UserID,
		UserRole:       d.UserRole,
		RelatedID:      d.RelatedID,
		ActionURL:      d.ActionURL,
		DeliveryStatus: DeliveryPending,
		CreatedAt:      now,
	}
}

// VisibleTo reports whether caller may see the notification.
func (n *Notification) VisibleTo(caller Identity) bool {
	if n.UserID != "" {
		return caller.UserID != "" && n.UserID == caller.UserID
	}
	return n.UserRole != "" && n.UserRole == caller.Role
}

// Broadcast reports whether the record targets a role instead of a user.
func (n *Notification) Broadcast() bool {
	return n.UserID == "" && n.UserRole != ""
}

// MarkAsRead sets the read flag once; later calls keep the first timestamp.
func (n *Notification) MarkAsRead(now time.Time) bool {
	if n.Read {
		return false
	}
	n.Read = true
	n.ReadAt = &now
	return true
}

// MarkAsDeleted soft-deletes the record.
func (n *Notification) MarkAsDeleted(now time.Time) bool {
	if n.Deleted {
		return false
	}
	n.Deleted = true
	n.DeletedAt = &now
	return true
}
