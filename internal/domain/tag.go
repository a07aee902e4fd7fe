package domain

import (
	"slices"
	"time"
)

// TagCategory is one of the four independent tag taxonomies.
type TagCategory string

const (
	CategoryFrom         TagCategory = "from"
	CategoryRelationship TagCategory = "relationship"
	CategoryCharacter    TagCategory = "character"
	CategoryField        TagCategory = "field"
)

// TagCategories is the fixed category order. Planning and import rely on it.
var TagCategories = []TagCategory{CategoryFrom, CategoryRelationship, CategoryCharacter, CategoryField}

// Valid reports whether c is a known category.
func (c TagCategory) Valid() bool {
	return slices.Contains(TagCategories, c)
}

// ParseTagCategory returns the category and whether it is known.
func ParseTagCategory(s string) (TagCategory, bool) {
	c := TagCategory(s)
	return c, c.Valid()
}

// Tag is a category-scoped label. ID is derived from the name, so two names that
// normalize alike share a tag. UsageCount is denormalized and may drift.
type Tag struct {
	ID         string      `json:"id"`
	Category   TagCategory `json:"category"`
	Name       string      `json:"name"`
	Color      string      `json:"color"`
	TextTone   string      `json:"text_tone"`
	UsageCount int         `json:"usage_count"`
	CreatedBy  string      `json:"created_by,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// TagRefs maps each category to the ids of the tags attached in that category.
type TagRefs map[TagCategory][]string

// Get returns the ids for a category.
func (r TagRefs) Get(c TagCategory) []string {
	if r == nil {
		return nil
	}
	return r[c]
}

// Set replaces the ids for a category, dropping the key when empty.
func (r TagRefs) Set(c TagCategory, ids []string) {
	if len(ids) == 0 {
		delete(r, c)
		return
	}
	r[c] = ids
}

// Clone returns a deep copy.
func (r TagRefs) Clone() TagRefs {
	if r == nil {
		return nil
	}
	out := make(TagRefs, len(r))
	for c, ids := range r {
		out[c] = slices.Clone(ids)
	}
	return out
}

// HasAny reports whether the category holds at least one of ids.
func (r TagRefs) HasAny(c TagCategory, ids []string) bool {
	for _, id := range r.Get(c) {
		if slices.Contains(ids, id) {
			return true
		}
	}
	return false
}

// TagDelta is the change in one category's tag set.
type TagDelta struct {
	Added   []string
	Removed []string
}

// Empty reports whether nothing changed.
func (d TagDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// ComputeTagDelta returns after\before as Added and before\after as Removed.
// Order follows the input slices; duplicates collapse.
func ComputeTagDelta(before, after []string) TagDelta {
	var d TagDelta
	for _, id := range dedupe(after) {
		if !slices.Contains(before, id) {
			d.Added = append(d.Added, id)
		}
	}
	for _, id := range dedupe(before) {
		if !slices.Contains(after, id) {
			d.Removed = append(d.Removed, id)
		}
	}
	return d
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
