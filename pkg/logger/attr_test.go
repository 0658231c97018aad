package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/classnotify/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("trigger", slog.String("id", "1"), slog.Int("channels", 2))
	require.Equal(t, "trigger", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "channels", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIdentityAttrs(t *testing.T) {
	t.Run("user id", func(t *testing.T) {
		attr := logger.UserID("student-1")
		require.Equal(t, "user_id", attr.Key)
		assert.Equal(t, "student-1", attr.Value.String())
		assert.True(t, logger.UserID("").Equal(slog.Attr{}))
	})

	t.Run("role", func(t *testing.T) {
		attr := logger.Role("parent")
		require.Equal(t, "role", attr.Key)
		assert.Equal(t, "parent", attr.Value.String())
		assert.True(t, logger.Role("").Equal(slog.Attr{}))
	})

	t.Run("related id", func(t *testing.T) {
		assert.Equal(t, "related_id", logger.RelatedID("lesson-9").Key)
		assert.True(t, logger.RelatedID("").Equal(slog.Attr{}))
	})
}

type testChannel string

func TestDomainAttrs(t *testing.T) {
	assert.Equal(t, "trigger_id", logger.TriggerID("t1").Key)
	assert.Equal(t, "notification_id", logger.NotificationID("n1").Key)

	ch := logger.Channel(testChannel("email"))
	assert.Equal(t, "channel", ch.Key)
	assert.Equal(t, "email", ch.Value.String())

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fa := logger.FireAt(ts)
	assert.Equal(t, "fire_at", fa.Key)
	assert.Equal(t, ts, fa.Value.Time())

	assert.Equal(t, int64(3), logger.Attempts(3).Value.Int64())
	assert.Equal(t, time.Second, logger.Duration(time.Second).Value.Duration())
}
