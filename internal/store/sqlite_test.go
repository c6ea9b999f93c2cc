package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/store"
	"github.com/nhle/notifeed/internal/testutil"
)

func TestMigrationsApplied(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestReopenKeepsSchemaAndData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifeed.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.HideNotification(ctx, "u1", "n-1"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	keys, err := s.HiddenNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []model.Key{"n-1"}, keys)
}

func TestHiddenNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	keys, err := s.HiddenNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.HideNotification(ctx, "u1", "a"))
	require.NoError(t, s.HideNotification(ctx, "u1", "SOCIAL:b"))
	require.NoError(t, s.HideNotification(ctx, "u1", "a"))
	require.NoError(t, s.HideNotification(ctx, "u2", "c"))

	keys, err = s.HiddenNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Key{"a", "SOCIAL:b"}, keys)

	list, err := s.ListHidden(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, h := range list {
		assert.Equal(t, "u1", h.UserID)
		assert.False(t, h.HiddenAt.IsZero())
	}

	require.NoError(t, s.UnhideNotification(ctx, "u1", "a"))
	keys, err = s.HiddenNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []model.Key{"SOCIAL:b"}, keys)

	keys, err = s.HiddenNotifications(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []model.Key{"c"}, keys)
}

func TestUnreadCountCache(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	snap, err := s.LastUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, s.SaveUnreadCount(ctx, "u1", 4))
	require.NoError(t, s.SaveUnreadCount(ctx, "u1", 9))

	snap, err = s.LastUnreadCount(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 9, snap.Count)
	assert.False(t, snap.PolledAt.IsZero())
}

var _ feed.HiddenStore = (*store.SQLiteStore)(nil)
