package policy_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/policy"
	"github.com/dmitrymomot/classnotify/pkg/settings"
	"github.com/dmitrymomot/classnotify/pkg/validator"
)

type staticSource map[string]settings.Settings

func (s staticSource) ForRecipient(_ context.Context, userID string) (settings.Settings, error) {
	if st, ok := s[userID]; ok {
		return st, nil
	}
	return settings.Defaults(), nil
}

type failingSource struct{}

func (failingSource) ForRecipient(context.Context, string) (settings.Settings, error) {
	return settings.Settings{}, errors.New("redis down")
}

var anchor = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func lessonEvent(recipients ...policy.Recipient) policy.Event {
	return policy.Event{
		Category:   notifications.TypeOnlineLesson,
		AnchorTime: anchor,
		Recipients: recipients,
		Payload:    policy.Payload{Title: "Algebra", RelatedID: "lesson-1", ActionURL: "/lessons/lesson-1"},
	}
}

func TestResolver_OnlineLessonDefaults(t *testing.T) {
	t.Parallel()
	r := policy.NewResolver(staticSource{})

	tuples, err := r.Resolve(context.Background(), lessonEvent(
		policy.Recipient{UserID: "s1", UserRole: "student"},
		policy.Recipient{UserID: "p1", UserRole: "parent"},
	))
	require.NoError(t, err)
	require.Len(t, tuples, 2)

	student := tuples[0]
	assert.Equal(t, "s1", student.Recipient.UserID)
	assert.Equal(t, anchor.Add(-10*time.Minute), student.FireAt)
	assert.Equal(t, []notifications.Channel{notifications.ChannelPush, notifications.ChannelSystem}, student.Channels)
	assert.Equal(t, notifications.PriorityHigh, student.Draft.Priority)
	assert.Equal(t, "lesson-1", student.Draft.RelatedID)

	parent := tuples[1]
	assert.Equal(t, anchor.Add(5*time.Minute), parent.FireAt)
	// sms is off by default
	assert.Equal(t, []notifications.Channel{notifications.ChannelEmail}, parent.Channels)
}

func TestResolver_UserSettings(t *testing.T) {
	t.Parallel()

	custom := settings.Defaults()
	custom.OnlineLessons.BeforeStart = 30
	custom.Channels.Push = false

	parent := settings.Defaults()
	parent.Channels = settings.ChannelSettings{}

	gated := settings.Defaults()
	gated.OnlineLessons.Enabled = false

	r := policy.NewResolver(staticSource{"s1": custom, "p1": parent, "t1": gated})

	tuples, err := r.Resolve(context.Background(), lessonEvent(
		policy.Recipient{UserID: "s1", UserRole: "student"},
		policy.Recipient{UserID: "p1", UserRole: "parent"},
		policy.Recipient{UserID: "t1", UserRole: "teacher"},
	))
	require.NoError(t, err)
	require.Len(t, tuples, 1, "parent has no enabled channel, teacher is gated off")

	assert.Equal(t, anchor.Add(-30*time.Minute), tuples[0].FireAt)
	assert.Equal(t, []notifications.Channel{notifications.ChannelSystem}, tuples[0].Channels)
}

func TestResolver_PastFireTimeIsKept(t *testing.T) {
	t.Parallel()
	r := policy.NewResolver(staticSource{})

	ev := lessonEvent(policy.Recipient{UserID: "s1", UserRole: "student"})
	ev.AnchorTime = time.Now().Add(-time.Hour)

	tuples, err := r.Resolve(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.True(t, tuples[0].FireAt.Before(time.Now()))
}

func TestResolver_RoleBroadcastUsesDefaults(t *testing.T) {
	t.Parallel()
	r := policy.NewResolver(staticSource{})

	tuples, err := r.Resolve(context.Background(), policy.Event{
		Category:   notifications.TypeAssignment,
		AnchorTime: anchor,
		Recipients: []policy.Recipient{{UserRole: "student"}},
		Payload:    policy.Payload{Title: "Essay", RelatedID: "a-1"},
	})
	require.NoError(t, err)
	require.Len(t, tuples, 2)

	names := []string{tuples[0].Rule, tuples[1].Rule}
	assert.ElementsMatch(t, []string{"assignment_due_soon", "assignment_overdue"}, names)
	for _, tp := range tuples {
		assert.True(t, tp.Draft.Broadcast())
		if tp.Rule == "assignment_due_soon" {
			assert.Equal(t, anchor.Add(-24*time.Hour), tp.FireAt)
		} else {
			assert.Equal(t, anchor, tp.FireAt)
			assert.Equal(t, "The due date has passed.", tp.Draft.Message)
		}
	}
}

func TestResolver_FixedOffsetCategories(t *testing.T) {
	t.Parallel()
	r := policy.NewResolver(staticSource{})

	tests := []struct {
		category notifications.Type
		role     string
		fireAt   time.Time
	}{
		{notifications.TypeFeeReminder, "parent", anchor.Add(-72 * time.Hour)},
		{notifications.TypeExam, "student", anchor.Add(-24 * time.Hour)},
		{notifications.TypeMeeting, "teacher", anchor.Add(-time.Hour)},
		{notifications.TypeSchedule, "student", anchor},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			tuples, err := r.Resolve(context.Background(), policy.Event{
				Category:   tt.category,
				AnchorTime: anchor,
				Recipients: []policy.Recipient{{UserID: "u1", UserRole: tt.role}},
				Payload:    policy.Payload{Title: "Heads up"},
			})
			require.NoError(t, err)
			require.Len(t, tuples, 1)
			assert.Equal(t, tt.fireAt, tuples[0].FireAt)
			assert.Contains(t, tuples[0].Channels, notifications.ChannelSystem)
		})
	}
}

func TestResolver_InvalidEvent(t *testing.T) {
	t.Parallel()
	r := policy.NewResolver(staticSource{})

	tests := []struct {
		name  string
		event policy.Event
		field string
	}{
		{"missing anchor", policy.Event{Category: notifications.TypeTask, Recipients: []policy.Recipient{{UserID: "u"}}, Payload: policy.Payload{Title: "x"}}, "anchor_time"},
		{"unknown category", policy.Event{Category: "homework", AnchorTime: anchor, Recipients: []policy.Recipient{{UserID: "u"}}, Payload: policy.Payload{Title: "x"}}, "category"},
		{"no recipients", policy.Event{Category: notifications.TypeTask, AnchorTime: anchor, Payload: policy.Payload{Title: "x"}}, "recipients"},
		{"empty recipient", policy.Event{Category: notifications.TypeTask, AnchorTime: anchor, Recipients: []policy.Recipient{{}}, Payload: policy.Payload{Title: "x"}}, "recipients[0]"},
		{"empty title", policy.Event{Category: notifications.TypeTask, AnchorTime: anchor, Recipients: []policy.Recipient{{UserID: "u"}}}, "payload.title"},
		{"bad priority", policy.Event{Category: notifications.TypeTask, AnchorTime: anchor, Recipients: []policy.Recipient{{UserID: "u"}}, Payload: policy.Payload{Title: "x", Priority: "urgent"}}, "payload.priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuples, err := r.Resolve(context.Background(), tt.event)
			require.Error(t, err)
			assert.Nil(t, tuples)
			assert.ErrorIs(t, err, policy.ErrInvalidEvent)
			assert.True(t, validator.Extract(err).Has(tt.field), "expected %s in %v", tt.field, err)
		})
	}
}

func TestResolver_SettingsError(t *testing.T) {
	t.Parallel()
	r := policy.NewResolver(failingSource{})

	_, err := r.Resolve(context.Background(), lessonEvent(policy.Recipient{UserID: "s1", UserRole: "student"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, policy.ErrInvalidEvent)
}

func TestResolver_DuplicateRecipients(t *testing.T) {
	t.Parallel()
	r := policy.NewResolver(staticSource{})

	rcpt := policy.Recipient{UserID: "s1", UserRole: "student"}
	tuples, err := r.Resolve(context.Background(), lessonEvent(rcpt, rcpt))
	require.NoError(t, err)
	assert.Len(t, tuples, 1)
}

func TestParseTable(t *testing.T) {
	t.Parallel()

	t.Run("default table is valid", func(t *testing.T) {
		table := policy.DefaultTable()
		assert.NotEmpty(t, table.Rules)
		assert.NoError(t, table.Validate())
	})

	t.Run("custom table", func(t *testing.T) {
		table, err := policy.LoadTable(strings.NewReader(`
rules:
  - name: quick_task
    category: task
    anchor: before
    offset: 15m
    channels: [system]
`))
		require.NoError(t, err)
		require.Len(t, table.Rules, 1)
		assert.Equal(t, 15*time.Minute, table.Rules[0].Offset)

		r := policy.NewResolver(staticSource{}, policy.WithTable(table))
		tuples, err := r.Resolve(context.Background(), policy.Event{
			Category:   notifications.TypeTask,
			AnchorTime: anchor,
			Recipients: []policy.Recipient{{UserID: "u1"}},
			Payload:    policy.Payload{Title: "Lab"},
		})
		require.NoError(t, err)
		require.Len(t, tuples, 1)
		assert.Equal(t, anchor.Add(-15*time.Minute), tuples[0].FireAt)
		assert.Equal(t, notifications.PriorityMedium, tuples[0].Draft.Priority)
	})

	t.Run("invalid rules", func(t *testing.T) {
		tests := []string{
			`rules: []`,
			"rules:\n  - name: x\n    category: homework\n    anchor: before\n    channels: [system]",
			"rules:\n  - name: x\n    category: task\n    anchor: during\n    channels: [system]",
			"rules:\n  - name: x\n    category: task\n    anchor: before\n    channels: [fax]",
			"rules:\n  - name: x\n    category: task\n    anchor: before\n    offset_setting: tasks.unknown\n    channels: [system]",
			"rules:\n  - name: x\n    category: task\n    anchor: before\n    gate: nope\n    channels: [system]",
		}
		for _, doc := range tests {
			_, err := policy.ParseTable([]byte(doc))
			assert.ErrorIs(t, err, policy.ErrInvalidRule, doc)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := policy.ParseTable([]byte("rules: [:"))
		assert.ErrorIs(t, err, policy.ErrRulesNotLoaded)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := policy.LoadFile("/nonexistent/rules.yaml")
		assert.ErrorIs(t, err, policy.ErrRulesNotLoaded)

		table, err := policy.LoadFile("")
		require.NoError(t, err)
		assert.Equal(t, policy.DefaultTable(), table)
	})
}
