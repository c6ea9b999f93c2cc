package feed

import (
	"sync"

	"github.com/nhle/notifeed/internal/model"
)

// State is the pagination state of a Cursor.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateHasMore
	StateExhausted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateHasMore:
		return "has-more"
	case StateExhausted:
		return "exhausted"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Token identifies the context a fetch was issued under. A result is only
// applied if its token still matches the cursor's live context.
type Token struct {
	Generation uint64
	Filter     model.FilterKind

	// Page is the page index requested, or for a refresh the number of
	// pages being refetched.
	Page int

	refresh bool
	prior   State
}

// Cursor drives sequential page requests for one filter context. At most
// one fetch per generation is in flight; a filter change starts a new
// generation, so results of the abandoned one are recognized as stale.
type Cursor struct {
	mu       sync.Mutex
	gen      uint64
	filter   model.FilterKind
	nextPage int
	state    State
	lastErr  error
}

// NewCursor returns an idle cursor positioned at page 1 of filter.
func NewCursor(filter model.FilterKind) *Cursor {
	return &Cursor{filter: filter, nextPage: 1, gen: 1}
}

// Status is a consistent read of the cursor.
type Status struct {
	Filter   model.FilterKind
	State    State
	NextPage int
	Err      error
}

// Status returns the current state.
func (c *Cursor) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Filter: c.filter, State: c.state, NextPage: c.nextPage, Err: c.lastErr}
}

// View runs fn with the current status while holding the cursor lock, so
// that fn observes dependent state consistent with it.
func (c *Cursor) View(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(Status{Filter: c.filter, State: c.state, NextPage: c.nextPage, Err: c.lastErr})
}

// Begin moves the cursor to Fetching for the next page and returns the
// token the result must present to Settle.
func (c *Cursor) Begin() (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateFetching:
		return Token{}, ErrFetchInFlight
	case StateExhausted:
		return Token{}, ErrExhausted
	case StateErrored:
		return Token{}, ErrRetryRequired
	}
	return c.beginLocked(), nil
}

// Retry moves an Errored cursor back to Fetching for the page that failed.
func (c *Cursor) Retry() (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateErrored {
		if c.state == StateFetching {
			return Token{}, ErrFetchInFlight
		}
		return Token{}, ErrNotErrored
	}
	return c.beginLocked(), nil
}

func (c *Cursor) beginLocked() Token {
	tok := Token{
		Generation: c.gen,
		Filter:     c.filter,
		Page:       c.nextPage,
		prior:      c.state,
	}
	c.state = StateFetching
	c.lastErr = nil
	return tok
}

// BeginRefresh takes the fetch slot to refetch every page loaded so far.
// It returns ok=false when nothing has been loaded yet.
func (c *Cursor) BeginRefresh() (tok Token, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateFetching {
		return Token{}, false, ErrFetchInFlight
	}
	loaded := c.nextPage - 1
	if loaded < 1 {
		return Token{}, false, nil
	}
	tok = Token{
		Generation: c.gen,
		Filter:     c.filter,
		Page:       loaded,
		refresh:    true,
		prior:      c.state,
	}
	c.state = StateFetching
	return tok, true, nil
}

// Settle resolves the fetch identified by tok. If tok no longer matches the
// live context it returns ErrStaleResponse and changes nothing. Otherwise
// apply runs under the cursor lock (only on success) so that no filter
// change can interleave with it, and the cursor advances.
//
// A failed page fetch moves the cursor to Errored. A failed refresh puts the
// cursor back where it was; the pages already loaded stay as they are.
func (c *Cursor) Settle(tok Token, fetchErr error, hasNext bool, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok.Generation != c.gen || tok.Filter != c.filter || c.state != StateFetching {
		return ErrStaleResponse
	}

	if tok.refresh {
		if tok.Page != c.nextPage-1 {
			return ErrStaleResponse
		}
		if fetchErr != nil {
			c.state = tok.prior
			return nil
		}
		if apply != nil {
			apply()
		}
		c.state = stateAfter(hasNext)
		c.lastErr = nil
		return nil
	}

	if tok.Page != c.nextPage {
		return ErrStaleResponse
	}
	if fetchErr != nil {
		c.state = StateErrored
		c.lastErr = fetchErr
		return nil
	}
	if apply != nil {
		apply()
	}
	c.nextPage = tok.Page + 1
	c.state = stateAfter(hasNext)
	return nil
}

// Reset starts a new generation for filter: pagination returns to page 1
// and onReset runs under the cursor lock to clear dependent state. Any
// fetch still in flight becomes stale; it is not cancelled.
func (c *Cursor) Reset(filter model.FilterKind, onReset func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.filter = filter
	c.nextPage = 1
	c.state = StateIdle
	c.lastErr = nil
	if onReset != nil {
		onReset()
	}
}

func stateAfter(hasNext bool) State {
	if hasNext {
		return StateHasMore
	}
	return StateExhausted
}
