package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/notifeed/internal/model"
)

// AuthError indicates that authentication has failed or expired.
// It is returned by backend clients when a 401 response is received.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// IsStatus reports whether err is a StatusError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// ValidationError is returned when a fetched page does not match the shape
// promised for its category. The whole page is rejected.
type ValidationError struct {
	Category model.Category
	Index    int
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s item at index %d: %s", e.Category, e.Index, e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Query selects one page of one category for one user.
type Query struct {
	UserID     string
	Category   model.Category
	UnreadOnly bool

	// Page is 1-based.
	Page     int
	PageSize int
}

// Fetcher retrieves a single page of a single category. Implementations
// surface transport and HTTP errors to the caller and do not retry.
type Fetcher interface {
	FetchPage(ctx context.Context, q Query) (*model.Page, error)
}

// Backend is the full set of notification endpoints the feed consumes.
type Backend interface {
	Fetcher

	// UnreadCount returns the authoritative unread count for a user.
	UnreadCount(ctx context.Context, userID string) (int, error)

	// MarkAsRead marks a single notification as read.
	MarkAsRead(ctx context.Context, id string) error

	// MarkAllAsRead marks every notification of a user as read. The
	// backend applies it all-or-nothing.
	MarkAllAsRead(ctx context.Context, userID string) error
}
