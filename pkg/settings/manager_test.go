package settings_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/classnotify/pkg/settings"
)

func TestManager_GetCreatesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := settings.NewMemoryStorage()
	m := settings.NewManager(storage)

	_, err := storage.Get(ctx, "u1")
	require.ErrorIs(t, err, settings.ErrSettingsNotFound)

	st, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults().Channels, st.Channels)
	assert.False(t, st.UpdatedAt.IsZero())

	stored, err := storage.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, st, stored)

	_, err = m.Get(ctx, "")
	assert.ErrorIs(t, err, settings.ErrMissingUserID)
}

func TestManager_UpdateMergesFieldLevel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := settings.NewManager(settings.NewMemoryStorage())

	_, err := m.Update(ctx, "u1", settings.Patch{OnlineLessons: &settings.OnlineLessonPatch{BeforeStart: settings.Ptr(30)}})
	require.NoError(t, err)

	st, err := m.Update(ctx, "u1", settings.Patch{OnlineLessons: &settings.OnlineLessonPatch{AfterStart: settings.Ptr(0)}})
	require.NoError(t, err)
	assert.Equal(t, 30, st.OnlineLessons.BeforeStart)
	assert.Equal(t, 0, st.OnlineLessons.AfterStart)
	assert.True(t, st.OnlineLessons.Enabled)

	got, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestManager_UpdateRejectsInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := settings.NewManager(settings.NewMemoryStorage())

	before, err := m.Get(ctx, "u1")
	require.NoError(t, err)

	_, err = m.Update(ctx, "u1", settings.Patch{Events: &settings.EventPatch{Upcoming: settings.Ptr(-5)}})
	assert.ErrorIs(t, err, settings.ErrInvalidSettings)

	after, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed update leaves stored settings untouched")
}

func TestManager_Reset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := settings.NewManager(settings.NewMemoryStorage())

	_, err := m.Update(ctx, "u1", settings.Patch{Channels: &settings.ChannelPatch{Email: settings.Ptr(false)}})
	require.NoError(t, err)

	st, err := m.Reset(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Channels.Email)
}

func TestManager_ForRecipient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	storage := settings.NewMemoryStorage()
	m := settings.NewManager(storage)

	st, err := m.ForRecipient(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), st)
}

func TestManager_ConcurrentUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := settings.NewManager(settings.NewMemoryStorage())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := m.Update(ctx, "u1", settings.Patch{Channels: &settings.ChannelPatch{SMS: settings.Ptr(true)}})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := m.Update(ctx, "u1", settings.Patch{Tasks: &settings.TaskPatch{DueSoon: settings.Ptr(12)}})
		assert.NoError(t, err)
	}()
	wg.Wait()

	st, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, st.Channels.SMS)
	assert.Equal(t, 12, st.Tasks.DueSoon)
}
