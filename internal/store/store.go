package store

import (
	"context"
	"time"

	"github.com/nhle/notifeed/internal/model"
)

// HiddenNotification is a record the user hid on this client. The backend
// never learns about it.
type HiddenNotification struct {
	UserID   string    `db:"user_id"`
	Key      model.Key `db:"notification_key"`
	HiddenAt time.Time `db:"hidden_at"`
}

// UnreadSnapshot is the last authoritative unread count seen for a user.
type UnreadSnapshot struct {
	UserID   string    `db:"user_id"`
	Count    int       `db:"count"`
	PolledAt time.Time `db:"polled_at"`
}

// Store defines the local persistence of client-only feed state.
type Store interface {
	// === Hidden notifications ===

	HideNotification(ctx context.Context, userID string, key model.Key) error
	UnhideNotification(ctx context.Context, userID string, key model.Key) error
	HiddenNotifications(ctx context.Context, userID string) ([]model.Key, error)
	ListHidden(ctx context.Context, userID string) ([]HiddenNotification, error)

	// === Unread count cache ===

	SaveUnreadCount(ctx context.Context, userID string, count int) error
	LastUnreadCount(ctx context.Context, userID string) (*UnreadSnapshot, error)

	Close() error
}
