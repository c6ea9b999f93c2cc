package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

var baseTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func notif(id string, cat model.Category, minutesAgo int, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Category:  cat,
		Title:     "title " + id,
		CreatedAt: baseTime.Add(-time.Duration(minutesAgo) * time.Minute),
		IsRead:    read,
	}
}

// series returns n records of cat, newest first, with ids prefix-0..n-1.
// Every third record is read.
func series(prefix string, cat model.Category, n, offset int) []model.Notification {
	out := make([]model.Notification, n)
	for i := range n {
		out[i] = notif(fmt.Sprintf("%s-%d", prefix, i), cat, offset+2*i, i%3 == 2)
	}
	return out
}

// fakeBackend serves notifications from memory and applies mutations the
// way a real backend would.
type fakeBackend struct {
	mu        sync.Mutex
	records   map[model.Category][]model.Notification
	fetchErr  map[model.Category]error
	markErr   error
	unread    int
	unreadErr error

	fetches      []source.Query
	markCalls    []string
	markAllCalls int

	// beforeFetch runs outside the lock before a page is served.
	beforeFetch func(q source.Query)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		records:  make(map[model.Category][]model.Notification),
		fetchErr: make(map[model.Category]error),
	}
}

func (f *fakeBackend) add(ns ...model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range ns {
		f.records[n.Category] = append(f.records[n.Category], n)
	}
}

func (f *fakeBackend) setFetchErr(cat model.Category, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr[cat] = err
}

func (f *fakeBackend) setMarkErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markErr = err
}

func (f *fakeBackend) queries() []source.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]source.Query, len(f.fetches))
	copy(out, f.fetches)
	return out
}

func (f *fakeBackend) FetchPage(_ context.Context, q source.Query) (*model.Page, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, q)
	hook := f.beforeFetch
	f.mu.Unlock()

	if hook != nil {
		hook(q)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[q.Category]; err != nil {
		return nil, err
	}

	var matching []model.Notification
	for _, n := range f.records[q.Category] {
		if q.UnreadOnly && n.IsRead {
			continue
		}
		matching = append(matching, n)
	}

	start := (q.Page - 1) * q.PageSize
	end := min(start+q.PageSize, len(matching))
	var items []model.Notification
	if start < len(matching) {
		items = append(items, matching[start:end]...)
	}
	return &model.Page{
		Items: items,
		Meta:  model.NewPageMetadata(len(matching), q.Page, q.PageSize),
	}, nil
}

func (f *fakeBackend) UnreadCount(_ context.Context, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, f.unreadErr
}

func (f *fakeBackend) MarkAsRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, id)
	if f.markErr != nil {
		return f.markErr
	}
	for _, ns := range f.records {
		for i := range ns {
			if ns[i].ID == id {
				ns[i].IsRead = true
			}
		}
	}
	return nil
}

func (f *fakeBackend) MarkAllAsRead(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllCalls++
	if f.markErr != nil {
		return f.markErr
	}
	for _, ns := range f.records {
		for i := range ns {
			ns[i].IsRead = true
		}
	}
	return nil
}

// fakeHiddenStore records hides in memory.
type fakeHiddenStore struct {
	mu   sync.Mutex
	keys map[string][]model.Key
	err  error
}

func (s *fakeHiddenStore) HideNotification(_ context.Context, userID string, key model.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.keys == nil {
		s.keys = make(map[string][]model.Key)
	}
	s.keys[userID] = append(s.keys[userID], key)
	return nil
}

func (s *fakeHiddenStore) HiddenNotifications(_ context.Context, userID string) ([]model.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[userID], nil
}
