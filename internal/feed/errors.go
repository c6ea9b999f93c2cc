package feed

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetchInFlight is returned when a page is requested while another
	// fetch for the live context has not settled.
	ErrFetchInFlight = errors.New("feed: page fetch already in flight")

	// ErrExhausted is returned when every source has reported its last page.
	ErrExhausted = errors.New("feed: no more pages")

	// ErrRetryRequired is returned by RequestNextPage after a failed fetch;
	// the caller must Retry explicitly.
	ErrRetryRequired = errors.New("feed: last fetch failed, retry required")

	// ErrNotErrored is returned by Retry when there is nothing to retry.
	ErrNotErrored = errors.New("feed: no failed fetch to retry")

	// ErrStaleResponse marks a result whose generation token no longer
	// matches the live context. The engine discards it silently.
	ErrStaleResponse = errors.New("feed: stale response")

	// ErrNotFound is returned by mutations for records not loaded.
	ErrNotFound = errors.New("feed: notification not loaded")
)

// MutationError reports a failed read-state mutation. The overlay has
// already been rolled back when it is returned; the rest of the feed is
// untouched.
type MutationError struct {
	Op  string
	IDs []string
	Err error
}

func (e *MutationError) Error() string {
	ids := strings.Join(e.IDs, ",")
	if len(e.IDs) > 3 {
		ids = fmt.Sprintf("%s,... (%d)", strings.Join(e.IDs[:3], ","), len(e.IDs))
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, ids, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// IsMutationError reports whether err is a MutationError.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}
