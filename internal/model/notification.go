package model

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies the backend source a notification was paged from.
// Category predicates are mutually exclusive: a record belongs to exactly
// one category.
type Category string

const (
	CategorySystem Category = "SYSTEM"
	CategorySocial Category = "SOCIAL"
)

// Categories lists every known category in merge tie-break order.
var Categories = []Category{CategorySystem, CategorySocial}

// ParseCategory normalizes a category name such as "system" or "SOCIAL".
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategorySystem, CategorySocial:
		return c, nil
	}
	return "", fmt.Errorf("unknown notification category %q", s)
}

// Param returns the lower-case form used in query strings.
func (c Category) Param() string {
	return strings.ToLower(string(c))
}

// IconKind is the presentation hint derived from the category payload.
type IconKind string

const (
	IconInfo    IconKind = "info"
	IconWarning IconKind = "warning"
	IconAlert   IconKind = "alert"
	IconLike    IconKind = "like"
	IconComment IconKind = "comment"
	IconFollow  IconKind = "follow"
	IconMention IconKind = "mention"
	IconSocial  IconKind = "social"
)

// Notification is one record of the feed. It is immutable once fetched;
// only IsRead may be shadowed locally by an overlay entry.
type Notification struct {
	// ID identifies the record on the backend.
	ID string `json:"id"`

	// Category is the source this record was fetched from.
	Category Category `json:"category"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// CreatedAt orders the merged feed (newest first).
	CreatedAt time.Time `json:"created_at"`

	// IsRead is the server-side read state at fetch time.
	IsRead bool `json:"is_read"`

	// LinkTarget is an optional deep link; empty means none.
	LinkTarget string `json:"link_target,omitempty"`

	// IconKind is derived at the fetch boundary.
	IconKind IconKind `json:"icon_kind"`
}

// Key identifies a record for deduplication and local state.
type Key string

// KeyFunc derives the identity key of a record.
type KeyFunc func(n Notification) Key

// GlobalKey treats ids as unique across categories.
func GlobalKey(n Notification) Key {
	return Key(n.ID)
}

// ScopedKey treats ids as unique only within a category.
func ScopedKey(n Notification) Key {
	return Key(string(n.Category) + ":" + n.ID)
}
