package listing

import (
	"cmp"
	"slices"

	"github.com/orbitapp/orbit-server/internal/domain"
)

// Merge combines stream pages into one list with no duplicate ids. When the same
// id appears more than once, the later occurrence wins. The result is ordered by
// creation time, newest first, with id as tie-breaker.
func Merge(pages ...[]*domain.Entity) []*domain.Entity {
	byID := make(map[string]*domain.Entity)
	var order []string
	for _, page := range pages {
		for _, e := range page {
			if _, ok := byID[e.ID]; !ok {
				order = append(order, e.ID)
			}
			byID[e.ID] = e
		}
	}

	out := make([]*domain.Entity, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst sorts by CreatedAt descending, then id ascending.
func SortNewestFirst(items []*domain.Entity) {
	slices.SortStableFunc(items, func(a, b *domain.Entity) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
