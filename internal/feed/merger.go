package feed

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/source"
)

// Merger fans one logical page index out to every source of a filter and
// merges the per-source pages into one page.
type Merger struct {
	fetcher  source.Fetcher
	pageSize int
	keyOf    model.KeyFunc
}

// NewMerger creates a merger requesting pageSize records per source.
func NewMerger(fetcher source.Fetcher, pageSize int, keyOf model.KeyFunc) *Merger {
	if keyOf == nil {
		keyOf = model.GlobalKey
	}
	return &Merger{fetcher: fetcher, pageSize: pageSize, keyOf: keyOf}
}

// FetchPage fetches page (1-based) of every source selected by filter
// concurrently and merges them. If any source fails, the whole page fails
// and no partial page is returned.
func (m *Merger) FetchPage(
	ctx context.Context,
	userID string,
	filter model.FilterKind,
	page int,
) (*model.Page, error) {
	cats := filter.Categories()
	if len(cats) == 0 {
		return nil, fmt.Errorf("filter %q selects no sources", filter)
	}

	pages := make([]*model.Page, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range cats {
		g.Go(func() error {
			p, err := m.fetcher.FetchPage(gctx, source.Query{
				UserID:     userID,
				Category:   cat,
				UnreadOnly: filter.UnreadOnly(),
				Page:       page,
				PageSize:   m.pageSize,
			})
			if err != nil {
				return err
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := Merge(pages, m.keyOf)
	return &merged, nil
}

// Merge combines per-source pages of the same logical index. pages must be
// in tie-break order: records with equal CreatedAt keep the order of their
// source in pages. Items are sorted newest first and deduplicated by key,
// first occurrence winning.
//
// Aggregate metadata assumes the category predicates are mutually exclusive:
// TotalCount and PageSize are summed, HasNext and HasPrevious are ORed, and
// CurrentPage and TotalPages take the maximum over sources.
func Merge(pages []*model.Page, keyOf model.KeyFunc) model.Page {
	if keyOf == nil {
		keyOf = model.GlobalKey
	}

	var (
		all  []model.Notification
		meta model.PageMetadata
	)
	for _, p := range pages {
		if p == nil {
			continue
		}
		all = append(all, p.Items...)

		meta.TotalCount += p.Meta.TotalCount
		meta.PageSize += p.Meta.PageSize
		meta.HasNext = meta.HasNext || p.Meta.HasNext
		meta.HasPrevious = meta.HasPrevious || p.Meta.HasPrevious
		meta.CurrentPage = max(meta.CurrentPage, p.Meta.CurrentPage)
		meta.TotalPages = max(meta.TotalPages, p.Meta.TotalPages)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	seen := make(map[model.Key]struct{}, len(all))
	items := make([]model.Notification, 0, len(all))
	for _, n := range all {
		k := keyOf(n)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		items = append(items, n)
	}

	return model.Page{Items: items, Meta: meta}
}
