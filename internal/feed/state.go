package feed

import (
	"sync"

	"github.com/nhle/notifeed/internal/model"
)

// StateKey identifies whose feed, under which filter, a FeedState holds.
type StateKey struct {
	UserID string
	Filter model.FilterKind
}

// FeedState is the concatenation, in fetch order, of every merged page
// fetched for one StateKey, deduplicated across pages. Overlay values are
// not stored here; they are applied when a snapshot is taken.
type FeedState struct {
	mu      sync.RWMutex
	key     StateKey
	keyOf   model.KeyFunc
	pages   []model.Page
	records []model.Notification
	index   map[model.Key]int
}

// NewFeedState returns an empty state for key.
func NewFeedState(key StateKey, keyOf model.KeyFunc) *FeedState {
	if keyOf == nil {
		keyOf = model.GlobalKey
	}
	return &FeedState{
		key:   key,
		keyOf: keyOf,
		index: make(map[model.Key]int),
	}
}

// Reset discards every page and rebinds the state to key.
func (s *FeedState) Reset(key StateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.pages = nil
	s.records = nil
	s.index = make(map[model.Key]int)
}

// Append adds a merged page. Records already present from an earlier page
// are skipped. It returns the number of records added.
func (s *FeedState) Append(p model.Page) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, p)
	return s.addLocked(p.Items)
}

// Replace swaps every page for a refetched set, keeping the same
// deduplication rule as Append.
func (s *FeedState) Replace(pages []model.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = pages
	s.records = nil
	s.index = make(map[model.Key]int)
	for _, p := range pages {
		s.addLocked(p.Items)
	}
}

func (s *FeedState) addLocked(items []model.Notification) int {
	added := 0
	for _, n := range items {
		k := s.keyOf(n)
		if _, ok := s.index[k]; ok {
			continue
		}
		s.index[k] = len(s.records)
		s.records = append(s.records, n)
		added++
	}
	return added
}

// Records returns a copy of the flat record list in feed order.
func (s *FeedState) Records() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, len(s.records))
	copy(out, s.records)
	return out
}

// Keys returns the keys of every loaded record.
func (s *FeedState) Keys() []model.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]model.Key, len(s.records))
	for i, n := range s.records {
		keys[i] = s.keyOf(n)
	}
	return keys
}

// FindByKey returns the loaded record whose key is k.
func (s *FeedState) FindByKey(k model.Key) (model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[k]
	if !ok {
		return model.Notification{}, false
	}
	return s.records[i], true
}

// PageCount returns how many merged pages are loaded.
func (s *FeedState) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// LastMeta returns the aggregate metadata of the most recent page.
func (s *FeedState) LastMeta() (model.PageMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pages) == 0 {
		return model.PageMetadata{}, false
	}
	return s.pages[len(s.pages)-1].Meta, true
}
