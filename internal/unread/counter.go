// Package unread polls the backend's authoritative unread count and
// reconciles it with the count observed in locally loaded records.
package unread

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/notifeed/pkg/logger"
)

// fetchTimeout is the maximum time allowed for a single poll.
const fetchTimeout = 15 * time.Second

// defaultInterval is used when the configured interval is not positive.
const defaultInterval = 30 * time.Second

// CountFetcher returns the authoritative unread count for a user.
type CountFetcher interface {
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// Counter polls an authoritative unread count on a fixed interval,
// independently of feed pagination.
type Counter struct {
	fetcher  CountFetcher
	userID   string
	interval time.Duration
	onChange func(count int)

	mu            sync.Mutex
	authoritative int
	known         bool
	lastErr       error
	running       bool
	triggerCh     chan struct{}
	stopCh        chan struct{}
	done          chan struct{}
}

// New creates a counter for userID. onChange, if non-nil, is called after
// every poll that changes the authoritative value.
func New(
	fetcher CountFetcher,
	userID string,
	interval time.Duration,
	onChange func(count int),
) *Counter {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Counter{
		fetcher:   fetcher,
		userID:    userID,
		interval:  interval,
		onChange:  onChange,
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the polling goroutine. The first poll runs immediately.
func (c *Counter) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stopCh, c.done
	c.mu.Unlock()

	go c.loop(stop, done)
}

// Stop halts polling and waits for the loop to exit.
func (c *Counter) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()

	<-done
}

// Trigger requests an immediate poll. It never blocks; a trigger arriving
// while one is already queued is coalesced.
func (c *Counter) Trigger() {
	select {
	case c.triggerCh <- struct{}{}:
	default:
	}
}

func (c *Counter) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.pollLogged()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.pollLogged()
		case <-c.triggerCh:
			c.pollLogged()
		}
	}
}

func (c *Counter) pollLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	if err := c.Poll(ctx); err != nil {
		logger.Warn("unread count poll failed",
			zap.String("user", c.userID),
			zap.Error(err),
		)
	}
}

// Poll fetches the authoritative count once. On failure the last known
// value is kept.
func (c *Counter) Poll(ctx context.Context) error {
	n, err := c.fetcher.UnreadCount(ctx, c.userID)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return err
	}
	changed := !c.known || c.authoritative != n
	c.authoritative = n
	c.known = true
	c.lastErr = nil
	c.mu.Unlock()

	if changed && c.onChange != nil {
		c.onChange(n)
	}
	return nil
}

// Authoritative returns the last polled count and whether any poll has
// succeeded yet.
func (c *Counter) Authoritative() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authoritative, c.known
}

// LastError returns the error of the most recent poll, if it failed.
func (c *Counter) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Displayed reconciles the authoritative count with the local one. The
// authoritative value always wins when present: locally loaded records are
// only a lower bound. The two are never added or subtracted.
func (c *Counter) Displayed(local int) int {
	if n, ok := c.Authoritative(); ok {
		return n
	}
	return local
}
