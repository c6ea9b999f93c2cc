package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/overlay"
	"github.com/nhle/notifeed/internal/source"
	"github.com/nhle/notifeed/pkg/logger"
)

// Mutation operation names used in MutationError.
const (
	OpMarkAsRead    = "markAsRead"
	OpMarkAllAsRead = "markAllAsRead"
	OpDelete        = "deleteNotification"
)

// HiddenStore persists locally hidden records so that hides survive a
// restart. Keys are produced by the feed's key function.
type HiddenStore interface {
	HideNotification(ctx context.Context, userID string, key model.Key) error
	HiddenNotifications(ctx context.Context, userID string) ([]model.Key, error)
}

// hiddenSet is the local-only delete projection for one user. It is kept
// across filter changes.
type hiddenSet struct {
	mu   sync.RWMutex
	keys map[model.Key]struct{}
}

func newHiddenSet() *hiddenSet {
	return &hiddenSet{keys: make(map[model.Key]struct{})}
}

func (h *hiddenSet) add(keys ...model.Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range keys {
		h.keys[k] = struct{}{}
	}
}

func (h *hiddenSet) has(k model.Key) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.keys[k]
	return ok
}

// Coordinator applies read-state mutations optimistically through the
// overlay, then confirms or rolls them back once the backend answers.
type Coordinator struct {
	backend source.Backend
	userID  string
	overlay *overlay.Overlay
	state   *FeedState
	hidden  *hiddenSet
	store   HiddenStore

	// changed is called whenever the displayed feed may have changed.
	changed func()
	// invalidate is called after the backend accepted a mutation.
	invalidate func()
}

func (c *Coordinator) notifyChanged() {
	if c.changed != nil {
		c.changed()
	}
}

// visible returns the loaded record with key k unless it is hidden.
func (c *Coordinator) visible(k model.Key) (model.Notification, bool) {
	if c.hidden.has(k) {
		return model.Notification{}, false
	}
	return c.state.FindByKey(k)
}

// MarkAsRead marks the loaded record with key k read. The overlay shows it
// read immediately; on failure the record's prior read state is restored.
// The backend is called with the record's own id.
func (c *Coordinator) MarkAsRead(ctx context.Context, k model.Key) error {
	n, ok := c.visible(k)
	if !ok {
		return &MutationError{Op: OpMarkAsRead, IDs: []string{string(k)}, Err: ErrNotFound}
	}
	id := n.ID

	txn := c.overlay.Begin([]model.Key{k}, true)
	c.notifyChanged()

	if err := c.backend.MarkAsRead(ctx, id); err != nil {
		txn.Rollback()
		c.notifyChanged()
		logger.Warn("mark as read failed, overlay rolled back",
			zap.String("id", id),
			zap.String("key", string(k)),
			zap.Error(err),
		)
		return &MutationError{Op: OpMarkAsRead, IDs: []string{id}, Err: err}
	}

	txn.Commit()
	c.notifyChanged()
	if c.invalidate != nil {
		c.invalidate()
	}
	return nil
}

// MarkAllAsRead overlays every loaded record as read and issues one bulk
// backend call. On failure every touched entry reverts together.
func (c *Coordinator) MarkAllAsRead(ctx context.Context) error {
	txn := c.overlay.Begin(c.state.Keys(), true)
	c.notifyChanged()

	if err := c.backend.MarkAllAsRead(ctx, c.userID); err != nil {
		txn.Rollback()
		c.notifyChanged()
		written := txn.Keys()
		logger.Warn("mark all as read failed, overlay rolled back",
			zap.String("user", c.userID),
			zap.Int("records", len(written)),
			zap.Error(err),
		)
		ids := make([]string, 0, len(written))
		for _, k := range written {
			ids = append(ids, string(k))
		}
		return &MutationError{Op: OpMarkAllAsRead, IDs: ids, Err: err}
	}

	txn.Commit()
	c.notifyChanged()
	if c.invalidate != nil {
		c.invalidate()
	}
	return nil
}

// DeleteNotification hides the loaded record with key k locally. No backend
// call is made; the record stays on the server and only this client stops
// showing it.
func (c *Coordinator) DeleteNotification(ctx context.Context, k model.Key) error {
	if _, ok := c.visible(k); !ok {
		return &MutationError{Op: OpDelete, IDs: []string{string(k)}, Err: ErrNotFound}
	}
	c.hidden.add(k)
	c.notifyChanged()

	if c.store != nil {
		if err := c.store.HideNotification(ctx, c.userID, k); err != nil {
			logger.Warn("persisting hidden notification failed",
				zap.String("key", string(k)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// loadHidden seeds the hidden set from the store.
func (c *Coordinator) loadHidden(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	keys, err := c.store.HiddenNotifications(ctx, c.userID)
	if err != nil {
		return err
	}
	c.hidden.add(keys...)
	return nil
}
