// Package feed merges independently paginated notification sources into
// one infinite-scroll feed and keeps its read state consistent with
// optimistic local mutations.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/overlay"
	"github.com/nhle/notifeed/internal/source"
	"github.com/nhle/notifeed/internal/unread"
	"github.com/nhle/notifeed/pkg/logger"
)

// DefaultPageSize is the per-source page size used when none is configured.
const DefaultPageSize = 10

// refreshTimeout bounds a background refresh started by invalidation.
const refreshTimeout = 30 * time.Second

// Snapshot is one consistent view of the feed for the UI.
type Snapshot struct {
	Filter model.FilterKind

	// Records are in feed order with overlay values applied and hidden
	// records removed.
	Records []model.Notification

	State   State
	Loading bool
	HasMore bool
	// Err is the error of the last failed page fetch while State is
	// StateErrored.
	Err error
	// Stale is set after a successful mutation until the loaded pages
	// have been refetched.
	Stale bool

	Pages int
	Meta  model.PageMetadata

	// UnreadCount is the displayed count: the polled authoritative value
	// when known, otherwise LocalUnread.
	UnreadCount int
	LocalUnread int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPageSize sets the per-source page size.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithFilter sets the initial filter.
func WithFilter(f model.FilterKind) Option {
	return func(e *Engine) { e.initial = f }
}

// WithScopedIDs keys records by (category, id) instead of id alone, for
// backends whose ids are only unique within a category.
func WithScopedIDs() Option {
	return func(e *Engine) { e.keyOf = model.ScopedKey }
}

// WithHiddenStore persists local deletes.
func WithHiddenStore(s HiddenStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithPollInterval sets the unread count poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithAutoRefresh refetches loaded pages in the background after every
// successful mutation.
func WithAutoRefresh() Option {
	return func(e *Engine) { e.autoRefresh = true }
}

// Engine is the UI-facing feed. All methods are safe for concurrent use.
type Engine struct {
	backend      source.Backend
	userID       string
	pageSize     int
	initial      model.FilterKind
	keyOf        model.KeyFunc
	store        HiddenStore
	pollInterval time.Duration
	autoRefresh  bool

	merger  *Merger
	cursor  *Cursor
	state   *FeedState
	overlay *overlay.Overlay
	hidden  *hiddenSet
	mut     *Coordinator
	counter *unread.Counter

	// Invalidation sequence: the feed is stale while invalidated is ahead
	// of the sequence the last refresh started from.
	invalidated atomic.Uint64
	refreshedAt atomic.Uint64
	refreshing  atomic.Bool

	pubMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	bg     sync.WaitGroup
}

// New creates an engine for userID over backend.
func New(backend source.Backend, userID string, opts ...Option) *Engine {
	e := &Engine{
		backend:  backend,
		userID:   userID,
		pageSize: DefaultPageSize,
		initial:  model.FilterAll,
		keyOf:    model.GlobalKey,
		subs:     make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.merger = NewMerger(backend, e.pageSize, e.keyOf)
	e.cursor = NewCursor(e.initial)
	e.state = NewFeedState(StateKey{UserID: userID, Filter: e.initial}, e.keyOf)
	e.overlay = overlay.New()
	e.hidden = newHiddenSet()
	e.mut = &Coordinator{
		backend:    backend,
		userID:     userID,
		overlay:    e.overlay,
		state:      e.state,
		hidden:     e.hidden,
		store:      e.store,
		changed:    e.publish,
		invalidate: e.invalidate,
	}
	e.counter = unread.New(backend, userID, e.pollInterval, func(int) { e.publish() })
	return e
}

// Start loads persisted hides and starts the unread count poller. It does
// not fetch the first page; call RequestNextPage for that.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.mut.loadHidden(ctx); err != nil {
		return fmt.Errorf("loading hidden notifications: %w", err)
	}
	e.counter.Start()
	return nil
}

// Stop halts polling, waits for background refreshes and closes every
// subscription.
func (e *Engine) Stop() {
	e.counter.Stop()
	e.bg.Wait()

	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
}

// Subscribe returns a channel carrying the latest snapshot after every
// change, and a function to cancel the subscription. Slow readers only
// miss intermediate snapshots, never the latest one.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.pubMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	ch <- e.snapshotLocked()
	e.pubMu.Unlock()

	cancel := func() {
		e.pubMu.Lock()
		defer e.pubMu.Unlock()
		if c, ok := e.subs[id]; ok {
			close(c)
			delete(e.subs, id)
		}
	}
	return ch, cancel
}

// Snapshot returns the current view.
func (e *Engine) Snapshot() Snapshot {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) publish() {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	if len(e.subs) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	var snap Snapshot
	e.cursor.View(func(st Status) {
		snap.Filter = st.Filter
		snap.State = st.State
		snap.Loading = st.State == StateFetching
		snap.HasMore = st.State != StateExhausted
		snap.Err = st.Err

		records := e.overlay.Apply(e.state.Records(), e.keyOf)
		snap.Records = records[:0]
		for _, n := range records {
			if e.hidden.has(e.keyOf(n)) {
				continue
			}
			snap.Records = append(snap.Records, n)
			if !n.IsRead {
				snap.LocalUnread++
			}
		}
		snap.Pages = e.state.PageCount()
		snap.Meta, _ = e.state.LastMeta()
	})
	snap.Stale = e.isStale()
	snap.UnreadCount = e.counter.Displayed(snap.LocalUnread)
	return snap
}

// UnreadCount returns the displayed unread count.
func (e *Engine) UnreadCount() int {
	return e.Snapshot().UnreadCount
}

// RequestNextPage fetches the next page of the current filter and appends
// it to the feed. It returns ErrFetchInFlight while another page is being
// fetched, ErrExhausted after the last page and ErrRetryRequired after a
// failed fetch. A result that arrives after a filter change is discarded
// and nil is returned.
func (e *Engine) RequestNextPage(ctx context.Context) error {
	tok, err := e.cursor.Begin()
	if err != nil {
		return err
	}
	return e.fetch(ctx, tok)
}

// Retry refetches the page whose fetch failed.
func (e *Engine) Retry(ctx context.Context) error {
	tok, err := e.cursor.Retry()
	if err != nil {
		return err
	}
	return e.fetch(ctx, tok)
}

func (e *Engine) fetch(ctx context.Context, tok Token) error {
	e.publish()

	page, fetchErr := e.merger.FetchPage(ctx, e.userID, tok.Filter, tok.Page)
	hasNext := page != nil && page.Meta.HasNext

	err := e.cursor.Settle(tok, fetchErr, hasNext, func() {
		e.state.Append(*page)
	})
	if errors.Is(err, ErrStaleResponse) {
		logger.Debug("discarding stale page",
			zap.String("filter", string(tok.Filter)),
			zap.Int("page", tok.Page),
			zap.Uint64("generation", tok.Generation),
		)
		return nil
	}
	e.publish()

	if fetchErr != nil {
		logger.Warn("page fetch failed",
			zap.String("filter", string(tok.Filter)),
			zap.Int("page", tok.Page),
			zap.Error(fetchErr),
		)
		return fmt.Errorf("fetching page %d of %s: %w", tok.Page, tok.Filter, fetchErr)
	}
	return nil
}

// Refresh refetches every loaded page of the current filter and replaces
// them. Confirmed overlay entries the backend now agrees with are dropped;
// pending ones survive. On failure the loaded pages are kept.
func (e *Engine) Refresh(ctx context.Context) error {
	tok, ok, err := e.cursor.BeginRefresh()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	seq := e.invalidated.Load()
	e.publish()

	pages := make([]model.Page, 0, tok.Page)
	var fetchErr error
	for p := 1; p <= tok.Page; p++ {
		mp, err := e.merger.FetchPage(ctx, e.userID, tok.Filter, p)
		if err != nil {
			fetchErr = err
			break
		}
		pages = append(pages, *mp)
	}
	hasNext := fetchErr == nil && pages[len(pages)-1].Meta.HasNext

	err = e.cursor.Settle(tok, fetchErr, hasNext, func() {
		e.state.Replace(pages)
		dropped := e.overlay.Reconcile(e.state.Records(), e.keyOf)
		e.refreshedAt.Store(seq)
		logger.Debug("refreshed feed",
			zap.String("filter", string(tok.Filter)),
			zap.Int("pages", len(pages)),
			zap.Int("overlay_dropped", dropped),
			zap.Int("overlay_remaining", e.overlay.Len()),
		)
	})
	if errors.Is(err, ErrStaleResponse) {
		logger.Debug("discarding stale refresh",
			zap.String("filter", string(tok.Filter)),
			zap.Uint64("generation", tok.Generation),
		)
		return nil
	}
	e.publish()

	if fetchErr != nil {
		logger.Warn("refresh failed", zap.String("filter", string(tok.Filter)), zap.Error(fetchErr))
		return fmt.Errorf("refreshing %s: %w", tok.Filter, fetchErr)
	}
	return nil
}

// ChangeFilter discards every loaded page and overlay entry, switches to
// filter and fetches its first page. A fetch still in flight for the old
// filter is not cancelled; its result is discarded when it arrives.
func (e *Engine) ChangeFilter(ctx context.Context, filter model.FilterKind) error {
	e.cursor.Reset(filter, func() {
		e.state.Reset(StateKey{UserID: e.userID, Filter: filter})
		e.overlay.Clear()
	})
	e.publish()

	err := e.RequestNextPage(ctx)
	if errors.Is(err, ErrFetchInFlight) {
		return nil
	}
	return err
}

// KeyOf returns the key the engine identifies n by. Mutations take this
// key so that records sharing an id across categories stay distinct when
// scoped ids are enabled.
func (e *Engine) KeyOf(n model.Notification) model.Key {
	return e.keyOf(n)
}

// MarkAsRead marks the loaded record with key k read.
func (e *Engine) MarkAsRead(ctx context.Context, k model.Key) error {
	return e.mut.MarkAsRead(ctx, k)
}

// MarkAllAsRead marks every record of the user read.
func (e *Engine) MarkAllAsRead(ctx context.Context) error {
	return e.mut.MarkAllAsRead(ctx)
}

// DeleteNotification hides the loaded record with key k on this client only.
func (e *Engine) DeleteNotification(ctx context.Context, k model.Key) error {
	return e.mut.DeleteNotification(ctx, k)
}

func (e *Engine) isStale() bool {
	return e.invalidated.Load() > e.refreshedAt.Load()
}

// invalidate marks the feed and unread count stale after the backend
// accepted a mutation.
func (e *Engine) invalidate() {
	e.invalidated.Add(1)
	e.counter.Trigger()
	e.publish()

	if !e.autoRefresh || !e.refreshing.CompareAndSwap(false, true) {
		return
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		defer e.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := e.Refresh(ctx); err != nil && !errors.Is(err, ErrFetchInFlight) {
			logger.Warn("background refresh failed", zap.Error(err))
		}
	}()
}
