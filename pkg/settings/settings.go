package settings

import (
	"errors"
	"time"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/validator"
)

const (
	MaxMinutesOffset = 7 * 24 * 60 // one week
	MaxHoursOffset   = 30 * 24     // thirty days
)

// Settings are one user's notification preferences.
type Settings struct {
	Channels      ChannelSettings      `json:"channels"`
	OnlineLessons OnlineLessonSettings `json:"online_lessons"`
	Assignments   AssignmentSettings   `json:"assignments"`
	Events        EventSettings        `json:"events"`
	Tasks         TaskSettings         `json:"tasks"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// ChannelSettings toggles the optional channels. SYSTEM is always on.
type ChannelSettings struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

// Enabled reports whether ch may be used for this user.
func (c ChannelSettings) Enabled(ch notifications.Channel) bool {
	switch ch {
	case notifications.ChannelSystem:
		return true
	case notifications.ChannelEmail:
		return c.Email
	case notifications.ChannelSMS:
		return c.SMS
	case notifications.ChannelPush:
		return c.Push
	}
	return false
}

// OnlineLessonSettings offsets are in minutes.
type OnlineLessonSettings struct {
	Enabled     bool `json:"enabled"`
	BeforeStart int  `json:"before_start"`
	AfterStart  int  `json:"after_start"`
}

// AssignmentSettings.DueSoon is in hours.
type AssignmentSettings struct {
	DueSoon int  `json:"due_soon"`
	Overdue bool `json:"overdue"`
}

// EventSettings.Upcoming is in hours.
type EventSettings struct {
	Upcoming  int  `json:"upcoming"`
	Reminders bool `json:"reminders"`
}

// TaskSettings.DueSoon is in hours.
type TaskSettings struct {
	DueSoon int  `json:"due_soon"`
	Overdue bool `json:"overdue"`
}

// Defaults returns the settings every user starts with.
func Defaults() Settings {
	return Settings{
		Channels:      ChannelSettings{Email: true, SMS: false, Push: true},
		OnlineLessons: OnlineLessonSettings{Enabled: true, BeforeStart: 10, AfterStart: 5},
		Assignments:   AssignmentSettings{DueSoon: 24, Overdue: true},
		Events:        EventSettings{Upcoming: 24, Reminders: true},
		Tasks:         TaskSettings{DueSoon: 24, Overdue: true},
	}
}

// Validate checks offset bounds.
func (s Settings) Validate() error {
	err := validator.Apply(
		validator.Range("online_lessons.before_start", s.OnlineLessons.BeforeStart, 0, MaxMinutesOffset),
		validator.Range("online_lessons.after_start", s.OnlineLessons.AfterStart, 0, MaxMinutesOffset),
		validator.Range("assignments.due_soon", s.Assignments.DueSoon, 0, MaxHoursOffset),
		validator.Range("events.upcoming", s.Events.Upcoming, 0, MaxHoursOffset),
		validator.Range("tasks.due_soon", s.Tasks.DueSoon, 0, MaxHoursOffset),
	)
	if err != nil {
		return errors.Join(ErrInvalidSettings, err)
	}
	return nil
}
