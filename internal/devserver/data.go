package devserver

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source/rest"
)

// record is one stored notification. Exactly one of system and social is
// set, matching category.
type record struct {
	userID    string
	category  model.Category
	system    *rest.SystemPayload
	social    *rest.SocialPayload
	isRead    bool
	createdAt time.Time
}

func (r *record) id() string {
	if r.system != nil {
		return r.system.ID
	}
	return r.social.ID
}

// envelope renders the record in the tagged wire format.
func (r *record) envelope() (rest.Envelope, error) {
	var (
		payload []byte
		err     error
	)
	switch r.category {
	case model.CategorySystem:
		p := *r.system
		p.IsRead, p.CreatedAt = r.isRead, r.createdAt
		payload, err = json.Marshal(p)
	default:
		p := *r.social
		p.IsRead, p.CreatedAt = r.isRead, r.createdAt
		payload, err = json.Marshal(p)
	}
	if err != nil {
		return rest.Envelope{}, fmt.Errorf("encoding %s payload: %w", r.category, err)
	}
	return rest.Envelope{Kind: string(r.category), Payload: payload}, nil
}

// memStore keeps notifications newest first.
type memStore struct {
	mu      sync.RWMutex
	records []*record
}

func (m *memStore) add(r *record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	sort.SliceStable(m.records, func(i, j int) bool {
		return m.records[i].createdAt.After(m.records[j].createdAt)
	})
}

// page returns page (1-based) of userID's records in cat.
func (m *memStore) page(
	userID string,
	cat model.Category,
	unreadOnly bool,
	page, pageSize int,
) ([]rest.Envelope, model.PageMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matching []*record
	for _, r := range m.records {
		if r.userID != userID || r.category != cat {
			continue
		}
		if unreadOnly && r.isRead {
			continue
		}
		matching = append(matching, r)
	}

	meta := model.NewPageMetadata(len(matching), page, pageSize)
	start := (meta.CurrentPage - 1) * meta.PageSize
	end := min(start+meta.PageSize, len(matching))

	items := make([]rest.Envelope, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		env, err := matching[i].envelope()
		if err != nil {
			return nil, meta, err
		}
		items = append(items, env)
	}
	return items, meta, nil
}

func (m *memStore) unreadCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.records {
		if r.userID == userID && !r.isRead {
			n++
		}
	}
	return n
}

// markRead marks every record with id read. It reports whether any matched.
func (m *memStore) markRead(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, r := range m.records {
		if r.id() == id {
			r.isRead = true
			found = true
		}
	}
	return found
}

func (m *memStore) markAllRead(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.userID == userID && !r.isRead {
			r.isRead = true
			n++
		}
	}
	return n
}

func (m *memStore) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var (
	seedSystemTitles = []string{
		"Scheduled maintenance", "New sign-in detected", "Storage almost full",
		"Password expires soon", "Release notes available", "Payment failed",
	}
	seedSeverities = []string{"info", "info", "warning", "alert"}
	seedActors     = []string{"mira", "jonas", "akiko", "lee", "sam", "noor"}
	seedActions    = []string{"liked", "commented", "followed", "mentioned"}
	seedExcerpts   = []string{
		"your outfit", "your post about autumn layers", "you in a comment", "",
	}
)

// seed generates n notifications for userID spread over the hours before
// now. The same rng seed always yields the same records, ids aside.
func (m *memStore) seed(userID string, n int, now time.Time, rng *rand.Rand) {
	for i := range n {
		created := now.Add(-time.Duration(i*17+rng.IntN(15)) * time.Minute)
		r := &record{
			userID:    userID,
			isRead:    rng.IntN(3) == 0,
			createdAt: created,
		}
		id := uuid.NewString()
		if rng.IntN(2) == 0 {
			r.category = model.CategorySystem
			r.system = &rest.SystemPayload{
				ID:       id,
				Title:    seedSystemTitles[rng.IntN(len(seedSystemTitles))],
				Message:  fmt.Sprintf("Event #%d for %s", i+1, userID),
				Severity: seedSeverities[rng.IntN(len(seedSeverities))],
			}
		} else {
			r.category = model.CategorySocial
			r.social = &rest.SocialPayload{
				ID:        id,
				Actor:     seedActors[rng.IntN(len(seedActors))],
				Action:    seedActions[rng.IntN(len(seedActions))],
				Excerpt:   seedExcerpts[rng.IntN(len(seedExcerpts))],
				TargetURL: fmt.Sprintf("/posts/%d", rng.IntN(500)),
			}
		}
		m.add(r)
	}
}
