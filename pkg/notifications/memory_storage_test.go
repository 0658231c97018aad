package notifications_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
)

var (
	student = notifications.Identity{UserID: "s1", Role: "student"}
	other   = notifications.Identity{UserID: "s2", Role: "student"}
	parent  = notifications.Identity{UserID: "p1", Role: "parent"}
)

func seed(t *testing.T, s notifications.Storage, logicalID string, d notifications.Draft, at time.Time, channels ...notifications.Channel) []notifications.Notification {
	t.Helper()
	var out []notifications.Notification
	for _, ch := range channels {
		n := notifications.New(logicalID, d, ch, at)
		require.NoError(t, s.Create(context.Background(), n))
		out = append(out, n)
	}
	return out
}

func TestMemoryStorage_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()

	n := notifications.New("t1", notifications.Draft{Type: notifications.TypeTask, Title: "x", UserID: "s1"}, notifications.ChannelEmail, time.Now())
	require.NoError(t, s.Create(ctx, n))
	assert.ErrorIs(t, s.Create(ctx, n), notifications.ErrDuplicateNotification)

	assert.ErrorIs(t, s.Create(ctx, notifications.Notification{ID: "x", LogicalID: "t"}), notifications.ErrInvalidNotification)
	assert.ErrorIs(t, s.Create(ctx, notifications.Notification{UserID: "s1"}), notifications.ErrInvalidNotification)
}

func TestMemoryStorage_ListScopedAndCollapsed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	seed(t, s, "lesson", notifications.Draft{Type: notifications.TypeOnlineLesson, Title: "Lesson soon", UserID: "s1", UserRole: "student", Priority: notifications.PriorityHigh},
		base, notifications.ChannelPush, notifications.ChannelSystem)
	seed(t, s, "task", notifications.Draft{Type: notifications.TypeTask, Title: "Clean lab", Message: "Bring GLOVES", UserID: "s1", Priority: notifications.PriorityLow},
		base.Add(time.Hour), notifications.ChannelEmail)
	seed(t, s, "broadcast", notifications.Draft{Type: notifications.TypeEvent, Title: "Sports day", UserRole: "student", Priority: notifications.PriorityMedium},
		base.Add(2*time.Hour), notifications.ChannelSystem)
	seed(t, s, "foreign", notifications.Draft{Type: notifications.TypeTask, Title: "Not yours", UserID: "s2"},
		base.Add(3*time.Hour), notifications.ChannelSystem)

	t.Run("newest first, one entry per logical notification", func(t *testing.T) {
		list, err := s.List(ctx, student, notifications.Filter{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "broadcast", list[0].LogicalID)
		assert.Equal(t, "task", list[1].LogicalID)
		assert.Equal(t, "lesson", list[2].LogicalID)
		assert.Equal(t, notifications.ChannelSystem, list[2].Channel)
	})

	t.Run("channel filter returns the copy", func(t *testing.T) {
		list, err := s.List(ctx, student, notifications.Filter{Channel: notifications.ChannelPush})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, notifications.ChannelPush, list[0].Channel)
	})

	t.Run("other users never see foreign records", func(t *testing.T) {
		list, err := s.List(ctx, parent, notifications.Filter{})
		require.NoError(t, err)
		assert.Empty(t, list)

		list, err = s.List(ctx, other, notifications.Filter{})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "foreign", list[0].LogicalID)
		assert.Equal(t, "broadcast", list[1].LogicalID)
	})

	t.Run("filters", func(t *testing.T) {
		tests := []struct {
			name   string
			filter notifications.Filter
			want   []string
		}{
			{"types", notifications.Filter{Types: []notifications.Type{notifications.TypeTask, notifications.TypeEvent}}, []string{"broadcast", "task"}},
			{"priority", notifications.Filter{Priority: notifications.PriorityHigh}, []string{"lesson"}},
			{"case-insensitive search on message", notifications.Filter{Search: "gloves"}, []string{"task"}},
			{"case-insensitive search on title", notifications.Filter{Search: "SPORTS"}, []string{"broadcast"}},
			{"unread", notifications.Filter{Read: notifications.Bool(false)}, []string{"broadcast", "task", "lesson"}},
			{"read", notifications.Filter{Read: notifications.Bool(true)}, nil},
			{"limit", notifications.Filter{Limit: 2}, []string{"broadcast", "task"}},
			{"offset", notifications.Filter{Limit: 2, Offset: 2}, []string{"lesson"}},
			{"offset past end", notifications.Filter{Offset: 10}, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				list, err := s.List(ctx, student, tt.filter)
				require.NoError(t, err)
				var got []string
				for _, n := range list {
					got = append(got, n.LogicalID)
				}
				assert.Equal(t, tt.want, got)
			})
		}
	})
}

func TestMemoryStorage_MarkRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()

	copies := seed(t, s, "lesson", notifications.Draft{Type: notifications.TypeOnlineLesson, Title: "Lesson", UserID: "s1"},
		time.Now(), notifications.ChannelEmail, notifications.ChannelSystem)

	require.NoError(t, s.MarkRead(ctx, student, copies[0].ID))
	first, err := s.Get(ctx, student, copies[1].ID)
	require.NoError(t, err)
	assert.True(t, first.Read, "all copies share read state")
	readAt := *first.ReadAt

	// idempotent, read never reverts and keeps the first timestamp
	require.NoError(t, s.MarkRead(ctx, student, copies[1].ID))
	again, err := s.Get(ctx, student, copies[1].ID)
	require.NoError(t, err)
	assert.True(t, again.Read)
	assert.Equal(t, readAt, *again.ReadAt)

	assert.ErrorIs(t, s.MarkRead(ctx, other, copies[0].ID), notifications.ErrNotificationNotFound)
	assert.ErrorIs(t, s.MarkRead(ctx, student, "missing"), notifications.ErrNotificationNotFound)

	count, err := s.CountUnread(ctx, student)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStorage_MarkAllRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()
	now := time.Now()

	seed(t, s, "a", notifications.Draft{Type: notifications.TypeTask, Title: "A", UserID: "s1"}, now, notifications.ChannelEmail, notifications.ChannelSystem)
	seed(t, s, "b", notifications.Draft{Type: notifications.TypeTask, Title: "B", UserRole: "student"}, now, notifications.ChannelSystem)
	seed(t, s, "c", notifications.Draft{Type: notifications.TypeTask, Title: "C", UserID: "s2"}, now, notifications.ChannelSystem)

	unread, err := s.CountUnread(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	n, err := s.MarkAllRead(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MarkAllRead(ctx, student)
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err = s.CountUnread(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 2, unread, "other student keeps the broadcast and their own record unread")
}

func TestMemoryStorage_BroadcastStateIsPerUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()

	copies := seed(t, s, "sports", notifications.Draft{Type: notifications.TypeEvent, Title: "Sports day", UserRole: "student"},
		time.Now(), notifications.ChannelEmail, notifications.ChannelSystem)

	require.NoError(t, s.MarkRead(ctx, student, copies[0].ID))

	mine, err := s.Get(ctx, student, copies[1].ID)
	require.NoError(t, err)
	assert.True(t, mine.Read, "reader sees every copy read")

	theirs, err := s.Get(ctx, other, copies[1].ID)
	require.NoError(t, err)
	assert.False(t, theirs.Read)
	assert.Nil(t, theirs.ReadAt)

	unread, err := s.CountUnread(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, s.Delete(ctx, student, copies[0].ID))

	list, err := s.List(ctx, student, notifications.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, s.MarkRead(ctx, student, copies[0].ID), notifications.ErrNotificationNotFound)

	list, err = s.List(ctx, other, notifications.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1, "deleting a broadcast only hides it for the caller")
	assert.Equal(t, notifications.ChannelSystem, list[0].Channel)
	assert.False(t, list[0].Read)

	n, err := s.MarkAllRead(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.MarkAllRead(ctx, student)
	require.NoError(t, err)
	assert.Zero(t, n, "deleted broadcast is not marked again")

	removed, err := s.Purge(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed, "broadcast records are not soft-deleted")

	list, err = s.List(ctx, student, notifications.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list, "receipts survive purge while the broadcast exists")
}

func TestMemoryStorage_DeleteAndPurge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()

	copies := seed(t, s, "a", notifications.Draft{Type: notifications.TypeExam, Title: "Exam", UserID: "s1"},
		time.Now(), notifications.ChannelSMS, notifications.ChannelSystem)

	assert.ErrorIs(t, s.Delete(ctx, other, copies[0].ID), notifications.ErrNotificationNotFound)
	require.NoError(t, s.Delete(ctx, student, copies[0].ID))

	list, err := s.List(ctx, student, notifications.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Get(ctx, student, copies[1].ID)
	assert.ErrorIs(t, err, notifications.ErrNotificationNotFound)
	assert.ErrorIs(t, s.Delete(ctx, student, copies[0].ID), notifications.ErrNotificationNotFound)

	removed, err := s.Purge(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = s.Purge(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestMemoryStorage_SetDeliveryStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()

	copies := seed(t, s, "a", notifications.Draft{Type: notifications.TypeMeeting, Title: "PTA", UserID: "p1"}, time.Now(), notifications.ChannelEmail)
	require.NoError(t, s.SetDeliveryStatus(ctx, copies[0].ID, notifications.DeliveryFailed, 3, "smtp down"))

	got, err := s.Get(ctx, parent, copies[0].ID)
	require.NoError(t, err)
	assert.Equal(t, notifications.DeliveryFailed, got.DeliveryStatus)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, "smtp down", got.DeliveryError)

	assert.ErrorIs(t, s.SetDeliveryStatus(ctx, "missing", notifications.DeliveryDelivered, 1, ""), notifications.ErrNotificationNotFound)
}

func TestMemoryStorage_ConcurrentMarkRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := notifications.NewMemoryStorage()

	var ids []string
	for i := range 20 {
		c := seed(t, s, fmt.Sprintf("n%d", i), notifications.Draft{Type: notifications.TypeTask, Title: "T", UserID: "s1"}, time.Now(), notifications.ChannelSystem)
		ids = append(ids, c[0].ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.MarkRead(ctx, student, id))
			}()
		}
	}
	wg.Wait()

	count, err := s.CountUnread(ctx, student)
	require.NoError(t, err)
	assert.Zero(t, count)
}
