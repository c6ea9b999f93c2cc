package model

import (
	"fmt"
	"strings"
)

// FilterKind selects which slice of the notification stream the feed shows.
type FilterKind string

const (
	FilterAll    FilterKind = "all"
	FilterUnread FilterKind = "unread"
	FilterSystem FilterKind = "system"
	FilterSocial FilterKind = "social"
)

// Filters lists the filter kinds in the order the UI cycles through them.
var Filters = []FilterKind{FilterAll, FilterUnread, FilterSystem, FilterSocial}

// ParseFilterKind validates a filter name.
func ParseFilterKind(s string) (FilterKind, error) {
	f := FilterKind(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FilterAll, FilterUnread, FilterSystem, FilterSocial:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Categories returns the sources a filter fans out to, in tie-break order.
func (f FilterKind) Categories() []Category {
	switch f {
	case FilterSystem:
		return []Category{CategorySystem}
	case FilterSocial:
		return []Category{CategorySocial}
	default:
		return []Category{CategorySystem, CategorySocial}
	}
}

// UnreadOnly reports whether the filter asks sources for unread records only.
func (f FilterKind) UnreadOnly() bool {
	return f == FilterUnread
}

// Next returns the filter after f in Filters, wrapping around.
func (f FilterKind) Next() FilterKind {
	for i, k := range Filters {
		if k == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return FilterAll
}
