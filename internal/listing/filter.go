package listing

import (
	"slices"

	"github.com/orbitapp/orbit-server/internal/domain"
)

// MatchesFilters applies type and tag filters to one entity: every selected
// category must share at least one tag with the entity.
func MatchesFilters(e *domain.Entity, f Filters) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, e.Type) {
		return false
	}
	for _, c := range domain.TagCategories {
		want := f.Tags.Get(c)
		if len(want) > 0 && !e.Tags.HasAny(c, want) {
			return false
		}
	}
	return true
}

// filterInPlace keeps the entities for which keep returns true.
func filterInPlace(items []*domain.Entity, keep func(*domain.Entity) bool) []*domain.Entity {
	return slices.DeleteFunc(items, func(e *domain.Entity) bool { return !keep(e) })
}
