package channel_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/classnotify/pkg/channel"
	"github.com/dmitrymomot/classnotify/pkg/mongo"
)

func TestMongoDirectory(t *testing.T) {
	url := os.Getenv("TEST_MONGO_URL")
	if url == "" {
		t.Skip("TEST_MONGO_URL not set")
	}
	ctx := context.Background()

	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "classnotify_test_" + uuid.NewString()[:8],
		ConnectTimeout: 5 * time.Second,
		RetryAttempts:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	dir := channel.NewMongoDirectory(db, "")
	require.NoError(t, dir.EnsureIndexes(ctx))

	require.NoError(t, dir.Upsert(ctx, channel.Contact{UserID: "s1", Role: "student", Email: "s1@school.test"}))
	require.NoError(t, dir.Upsert(ctx, channel.Contact{UserID: "s2", Role: "student"}))
	require.NoError(t, dir.Upsert(ctx, channel.Contact{UserID: "s1", Role: "student", Email: "new@school.test"}))

	c, err := dir.Lookup(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "new@school.test", c.Email)

	_, err = dir.Lookup(ctx, "ghost")
	assert.ErrorIs(t, err, channel.ErrContactNotFound)

	students, err := dir.ByRole(ctx, "student")
	require.NoError(t, err)
	assert.Len(t, students, 2)
}
