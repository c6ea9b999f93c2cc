package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/store"
)

// NewTestStore opens an in-memory SQLiteStore with every migration applied
// and closes it when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "opening test store")

	t.Cleanup(func() {
		require.NoError(t, s.Close(), "closing test store")
	})
	return s
}
