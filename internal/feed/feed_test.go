package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// seededBackend holds 15 system and 5 social records; 10 of them unread
// among the system ones, 4 among the social ones.
func seededBackend() *fakeBackend {
	fb := newFakeBackend()
	fb.add(series("sys", model.CategorySystem, 15, 0)...)
	fb.add(series("soc", model.CategorySocial, 5, 1)...)
	return fb
}

func newTestEngine(t *testing.T, fb *fakeBackend, opts ...Option) *Engine {
	t.Helper()
	e := New(fb, "u1", opts...)
	t.Cleanup(e.Stop)
	return e
}

func recordByID(t *testing.T, snap Snapshot, id string) model.Notification {
	t.Helper()
	for _, n := range snap.Records {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("record %s not in snapshot", id)
	return model.Notification{}
}

func readStates(snap Snapshot) map[string]bool {
	out := make(map[string]bool, len(snap.Records))
	for _, n := range snap.Records {
		out[n.ID] = n.IsRead
	}
	return out
}

func TestRequestNextPageAppendsUntilExhausted(t *testing.T) {
	fb := seededBackend()
	e := newTestEngine(t, fb)
	ctx := context.Background()

	require.NoError(t, e.RequestNextPage(ctx))
	snap := e.Snapshot()
	assert.Len(t, snap.Records, 15)
	assert.Equal(t, StateHasMore, snap.State)
	assert.True(t, snap.HasMore)
	assert.Equal(t, 20, snap.Meta.TotalCount)

	require.NoError(t, e.RequestNextPage(ctx))
	snap = e.Snapshot()
	assert.Len(t, snap.Records, 20)
	assert.Equal(t, 2, snap.Pages)
	assert.Equal(t, StateExhausted, snap.State)
	assert.False(t, snap.HasMore)

	seen := make(map[string]bool)
	for _, n := range snap.Records {
		assert.False(t, seen[n.ID], "duplicate %s", n.ID)
		seen[n.ID] = true
	}

	assert.ErrorIs(t, e.RequestNextPage(ctx), ErrExhausted)
}

func TestFetchFailureNeedsRetry(t *testing.T) {
	fb := seededBackend()
	boom := errors.New("connection refused")
	fb.setFetchErr(model.CategorySocial, boom)
	e := newTestEngine(t, fb)
	ctx := context.Background()

	err := e.RequestNextPage(ctx)
	require.ErrorIs(t, err, boom)

	snap := e.Snapshot()
	assert.Empty(t, snap.Records, "no partial page")
	assert.Equal(t, StateErrored, snap.State)
	assert.ErrorIs(t, snap.Err, boom)

	assert.ErrorIs(t, e.RequestNextPage(ctx), ErrRetryRequired)

	fb.setFetchErr(model.CategorySocial, nil)
	require.NoError(t, e.Retry(ctx))
	assert.Len(t, e.Snapshot().Records, 15)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	fb := seededBackend()
	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	fb.beforeFetch = func(q source.Query) {
		if q.UnreadOnly {
			return
		}
		started <- struct{}{}
		<-gate
	}
	e := newTestEngine(t, fb)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- e.RequestNextPage(ctx) }()
	<-started

	require.NoError(t, e.ChangeFilter(ctx, model.FilterUnread))
	want := e.Snapshot()
	assert.Equal(t, model.FilterUnread, want.Filter)
	assert.Len(t, want.Records, 14)
	for _, n := range want.Records {
		assert.False(t, n.IsRead)
	}

	close(gate)
	require.NoError(t, <-slow)

	got := e.Snapshot()
	assert.Equal(t, ids(want.Records), ids(got.Records))
	assert.Equal(t, 1, got.Pages)
	assert.Equal(t, model.FilterUnread, got.Filter)
}

func TestChangeFilterRestartsAtFirstPage(t *testing.T) {
	fb := seededBackend()
	e := newTestEngine(t, fb, WithPageSize(5))
	ctx := context.Background()

	require.NoError(t, e.RequestNextPage(ctx))
	require.NoError(t, e.RequestNextPage(ctx))
	require.Equal(t, 2, e.Snapshot().Pages)

	require.NoError(t, e.ChangeFilter(ctx, model.FilterSystem))

	qs := fb.queries()
	last := qs[len(qs)-1]
	assert.Equal(t, model.CategorySystem, last.Category)
	assert.Equal(t, 1, last.Page)

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Pages)
	assert.Len(t, snap.Records, 5)
	for _, n := range snap.Records {
		assert.Equal(t, model.CategorySystem, n.Category)
	}
}

func TestMarkAsRead(t *testing.T) {
	t.Run("success changes only that record", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		before := readStates(e.Snapshot())
		require.False(t, before["sys-0"])

		require.NoError(t, e.MarkAsRead(ctx, "sys-0"))

		after := readStates(e.Snapshot())
		assert.True(t, after["sys-0"])
		delete(before, "sys-0")
		delete(after, "sys-0")
		assert.Equal(t, before, after)

		assert.Equal(t, []string{"sys-0"}, fb.markCalls)
		assert.True(t, e.Snapshot().Stale)
		assert.Equal(t, 1, e.overlay.Len())
	})

	t.Run("failure restores prior state", func(t *testing.T) {
		fb := seededBackend()
		boom := errors.New("503")
		fb.setMarkErr(boom)
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))
		before := readStates(e.Snapshot())

		err := e.MarkAsRead(ctx, "soc-1")
		require.Error(t, err)
		assert.True(t, IsMutationError(err))
		assert.ErrorIs(t, err, boom)

		assert.Equal(t, before, readStates(e.Snapshot()))
		assert.Zero(t, e.overlay.Len())
		assert.False(t, e.Snapshot().Stale)
	})

	t.Run("record not loaded", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb)

		err := e.MarkAsRead(context.Background(), "sys-0")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, fb.markCalls)
	})
}

func TestMarkAllAsRead(t *testing.T) {
	t.Run("success marks every loaded record", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		require.NoError(t, e.MarkAllAsRead(ctx))
		snap := e.Snapshot()
		for _, n := range snap.Records {
			assert.True(t, n.IsRead, n.ID)
		}
		assert.Zero(t, snap.LocalUnread)
		assert.Equal(t, 1, fb.markAllCalls)
	})

	t.Run("failure reverts all records together", func(t *testing.T) {
		fb := seededBackend()
		fb.setMarkErr(errors.New("timeout"))
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		before := e.Snapshot()
		err := e.MarkAllAsRead(ctx)
		require.Error(t, err)

		var me *MutationError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, OpMarkAllAsRead, me.Op)
		assert.Len(t, me.IDs, 15)

		after := e.Snapshot()
		assert.Equal(t, readStates(before), readStates(after))
		assert.Equal(t, before.LocalUnread, after.LocalUnread)
		assert.Zero(t, e.overlay.Len())
	})
}

func TestDeleteNotificationIsLocalOnly(t *testing.T) {
	fb := seededBackend()
	hs := &fakeHiddenStore{}
	e := newTestEngine(t, fb, WithHiddenStore(hs))
	ctx := context.Background()
	require.NoError(t, e.RequestNextPage(ctx))

	before := e.Snapshot()
	require.False(t, recordByID(t, before, "sys-0").IsRead)

	require.NoError(t, e.DeleteNotification(ctx, "sys-0"))

	after := e.Snapshot()
	assert.Len(t, after.Records, len(before.Records)-1)
	assert.NotContains(t, ids(after.Records), "sys-0")
	assert.Equal(t, before.LocalUnread-1, after.LocalUnread)
	assert.Empty(t, fb.markCalls)
	assert.Zero(t, fb.markAllCalls)
	assert.Equal(t, []model.Key{"sys-0"}, hs.keys["u1"])

	// Hiding survives a filter change.
	require.NoError(t, e.ChangeFilter(ctx, model.FilterSystem))
	assert.NotContains(t, ids(e.Snapshot().Records), "sys-0")

	assert.ErrorIs(t, e.DeleteNotification(ctx, "sys-0"), ErrNotFound)
	assert.ErrorIs(t, e.MarkAsRead(ctx, "sys-0"), ErrNotFound)
}

func TestStartLoadsPersistedHides(t *testing.T) {
	fb := seededBackend()
	hs := &fakeHiddenStore{keys: map[string][]model.Key{"u1": {"soc-0"}}}
	e := newTestEngine(t, fb, WithHiddenStore(hs), WithPollInterval(time.Hour))
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.RequestNextPage(ctx))

	snap := e.Snapshot()
	assert.Len(t, snap.Records, 14)
	assert.NotContains(t, ids(snap.Records), "soc-0")
}

func TestUnreadCountPrefersAuthoritative(t *testing.T) {
	fb := newFakeBackend()
	for i := range 7 {
		fb.add(notif(string(rune('a'+i)), model.CategorySystem, i, false))
	}
	fb.unread = 5
	e := newTestEngine(t, fb)
	ctx := context.Background()
	require.NoError(t, e.RequestNextPage(ctx))

	assert.Equal(t, 7, e.UnreadCount(), "local count until the first poll")

	require.NoError(t, e.counter.Poll(ctx))
	snap := e.Snapshot()
	assert.Equal(t, 7, snap.LocalUnread)
	assert.Equal(t, 5, snap.UnreadCount)
	assert.Equal(t, 5, e.UnreadCount())
}

func TestRefresh(t *testing.T) {
	t.Run("drops confirmed overlay once backend agrees", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))
		require.NoError(t, e.MarkAsRead(ctx, "sys-1"))
		require.Equal(t, 1, e.overlay.Len())
		require.True(t, e.Snapshot().Stale)

		require.NoError(t, e.Refresh(ctx))

		snap := e.Snapshot()
		assert.Zero(t, e.overlay.Len())
		assert.True(t, recordByID(t, snap, "sys-1").IsRead)
		assert.False(t, snap.Stale)
		assert.Equal(t, StateHasMore, snap.State)
	})

	t.Run("keeps overlay the backend has not caught up with", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		txn := e.overlay.Begin([]model.Key{"sys-0"}, true)
		require.NoError(t, e.Refresh(ctx))

		assert.True(t, recordByID(t, e.Snapshot(), "sys-0").IsRead)
		txn.Commit()
		require.NoError(t, e.Refresh(ctx))
		assert.True(t, recordByID(t, e.Snapshot(), "sys-0").IsRead)
		assert.Equal(t, 1, e.overlay.Len())
	})

	t.Run("failure keeps loaded pages", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		fb.setFetchErr(model.CategorySystem, errors.New("boom"))
		require.Error(t, e.Refresh(ctx))

		snap := e.Snapshot()
		assert.Len(t, snap.Records, 15)
		assert.Equal(t, StateHasMore, snap.State)
		assert.Nil(t, snap.Err)
	})

	t.Run("drops overlay for records the filter no longer returns", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb, WithFilter(model.FilterUnread))
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))
		before := len(e.Snapshot().Records)

		require.NoError(t, e.MarkAsRead(ctx, "sys-1"))
		require.Equal(t, 1, e.overlay.Len())

		require.NoError(t, e.Refresh(ctx))

		snap := e.Snapshot()
		assert.Zero(t, e.overlay.Len())
		assert.Len(t, snap.Records, before-1)
		for _, n := range snap.Records {
			assert.NotEqual(t, "sys-1", n.ID)
		}
	})

	t.Run("success clears a page error", func(t *testing.T) {
		fb := seededBackend()
		e := newTestEngine(t, fb)
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		fb.setFetchErr(model.CategorySocial, errors.New("boom"))
		require.Error(t, e.RequestNextPage(ctx))
		require.Equal(t, StateErrored, e.Snapshot().State)

		fb.setFetchErr(model.CategorySocial, nil)
		require.NoError(t, e.Refresh(ctx))

		snap := e.Snapshot()
		assert.Equal(t, StateHasMore, snap.State)
		assert.Nil(t, snap.Err)
		assert.Len(t, snap.Records, 15)
	})

	t.Run("nothing loaded", func(t *testing.T) {
		e := newTestEngine(t, seededBackend())
		require.NoError(t, e.Refresh(context.Background()))
		assert.Equal(t, StateIdle, e.Snapshot().State)
	})
}

func TestAutoRefreshAfterMutation(t *testing.T) {
	fb := seededBackend()
	e := newTestEngine(t, fb, WithAutoRefresh())
	ctx := context.Background()
	require.NoError(t, e.RequestNextPage(ctx))

	require.NoError(t, e.MarkAsRead(ctx, "soc-0"))

	require.Eventually(t, func() bool {
		return !e.Snapshot().Stale && e.overlay.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, recordByID(t, e.Snapshot(), "soc-0").IsRead)
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	fb := seededBackend()
	e := newTestEngine(t, fb)
	ctx := context.Background()

	ch, cancel := e.Subscribe()
	defer cancel()

	first := <-ch
	assert.Empty(t, first.Records)
	assert.Equal(t, StateIdle, first.State)

	require.NoError(t, e.RequestNextPage(ctx))

	var latest Snapshot
	require.Eventually(t, func() bool {
		select {
		case latest = <-ch:
		default:
		}
		return len(latest.Records) == 15
	}, time.Second, 5*time.Millisecond)
	assert.False(t, latest.Loading)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestScopedIDsKeepCollidingRecords(t *testing.T) {
	fb := newFakeBackend()
	fb.add(notif("1", model.CategorySystem, 0, false), notif("1", model.CategorySocial, 1, false))
	ctx := context.Background()

	global := newTestEngine(t, fb)
	require.NoError(t, global.RequestNextPage(ctx))
	assert.Len(t, global.Snapshot().Records, 1)

	scoped := newTestEngine(t, fb, WithScopedIDs())
	require.NoError(t, scoped.RequestNextPage(ctx))
	assert.Len(t, scoped.Snapshot().Records, 2)
}

func TestScopedIDsMutateOneRecord(t *testing.T) {
	system := notif("1", model.CategorySystem, 0, false)
	social := notif("1", model.CategorySocial, 1, false)

	t.Run("mark as read", func(t *testing.T) {
		fb := newFakeBackend()
		fb.add(system, social)
		e := newTestEngine(t, fb, WithScopedIDs())
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		require.NoError(t, e.MarkAsRead(ctx, e.KeyOf(social)))

		read := make(map[model.Category]bool)
		for _, n := range e.Snapshot().Records {
			read[n.Category] = n.IsRead
		}
		assert.Equal(t, map[model.Category]bool{
			model.CategorySystem: false,
			model.CategorySocial: true,
		}, read)
		assert.Equal(t, []string{"1"}, fb.markCalls)
	})

	t.Run("delete", func(t *testing.T) {
		fb := newFakeBackend()
		fb.add(system, social)
		e := newTestEngine(t, fb, WithScopedIDs())
		ctx := context.Background()
		require.NoError(t, e.RequestNextPage(ctx))

		require.NoError(t, e.DeleteNotification(ctx, e.KeyOf(social)))
		records := e.Snapshot().Records
		require.Len(t, records, 1)
		assert.Equal(t, model.CategorySystem, records[0].Category)

		require.NoError(t, e.DeleteNotification(ctx, e.KeyOf(system)))
		assert.Empty(t, e.Snapshot().Records)

		err := e.DeleteNotification(ctx, e.KeyOf(social))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
