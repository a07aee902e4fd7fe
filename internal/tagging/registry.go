// Package tagging keeps tag usage counts in step with the entities that reference them.
//
// Every change to an entity's tag set goes through a delta: ids added gain one
// use, ids removed lose one. Counts are best effort; Reconcile repairs drift.
package tagging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orbitapp/orbit-server/internal/color"
	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/metrics"
	"github.com/orbitapp/orbit-server/internal/normalize"
	"github.com/orbitapp/orbit-server/internal/store"
)

// Registry resolves tag names and maintains usage counts.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRegistry creates a tag registry.
func NewRegistry(s *store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: s, logger: logger}
}

// QueueDelta adds the count changes for one category to b and returns the delta.
func (r *Registry) QueueDelta(b *store.Batch, category domain.TagCategory, before, after []string) domain.TagDelta {
	d := domain.ComputeTagDelta(before, after)
	for _, id := range d.Added {
		b.IncrementTagUsage(category, id, 1)
	}
	for _, id := range d.Removed {
		b.IncrementTagUsage(category, id, -1)
	}
	return d
}

// QueueRefs queues deltas for every category. Pass nil before for a new
// entity and nil after for a deleted one.
func (r *Registry) QueueRefs(b *store.Batch, before, after domain.TagRefs) {
	for _, c := range domain.TagCategories {
		r.QueueDelta(b, c, before.Get(c), after.Get(c))
	}
}

// ApplyTagDelta commits the count changes for one entity's category edit.
// When b is non-nil the changes join the caller's pending writes and commit
// with them; otherwise they commit on their own.
func (r *Registry) ApplyTagDelta(ctx context.Context, b *store.Batch, entityID string, category domain.TagCategory, before, after []string) (domain.TagDelta, error) {
	if !category.Valid() {
		return domain.TagDelta{}, fmt.Errorf("unknown tag category %q", category)
	}

	if b == nil {
		b = r.store.NewBatch()
	}
	d := r.QueueDelta(b, category, before, after)
	if b.Len() == 0 {
		return d, nil
	}
	if err := b.Commit(ctx); err != nil {
		return domain.TagDelta{}, fmt.Errorf("apply tag delta for %s: %w", entityID, err)
	}

	r.logger.Debug("tag delta applied",
		"entity_id", entityID,
		"category", category,
		"added", len(d.Added),
		"removed", len(d.Removed),
	)
	return d, nil
}

// Ensure resolves display names to tags in a category, creating missing ones.
// The same name in any casing or spacing always resolves to the same tag.
// Results follow input order with duplicates removed.
func (r *Registry) Ensure(ctx context.Context, userID string, category domain.TagCategory, names []string) ([]*domain.Tag, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown tag category %q", category)
	}

	existing, err := r.store.ListTags(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load %s tags: %w", category, err)
	}
	snap := newSnapshot(existing)

	out := make([]*domain.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		id := normalize.TagID(name)
		if id == "" {
			continue
		}

		t := snap.match(id, name)
		if t == nil {
			bg, tone := color.Pastel()
			candidate := &domain.Tag{
				ID:        id,
				Category:  category,
				Name:      name,
				Color:     bg,
				TextTone:  string(tone),
				CreatedBy: userID,
				CreatedAt: time.Now(),
			}
			var created bool
			t, created, err = r.store.CreateTagIfAbsent(ctx, candidate)
			if err != nil {
				return nil, fmt.Errorf("create tag %q: %w", name, err)
			}
			if created {
				r.logger.Info("tag created", "category", category, "tag_id", id, "user_id", userID)
			}
			snap.add(t)
		}

		if !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// EnsureIDs is Ensure returning only the ids.
func (r *Registry) EnsureIDs(ctx context.Context, userID string, category domain.TagCategory, names []string) ([]string, error) {
	tags, err := r.Ensure(ctx, userID, category, names)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids, nil
}

// snapshot is an in-memory view of one category used to match names before creating.
type snapshot struct {
	byID   map[string]*domain.Tag
	byName map[string]*domain.Tag
}

func newSnapshot(tags []*domain.Tag) *snapshot {
	s := &snapshot{
		byID:   make(map[string]*domain.Tag, len(tags)),
		byName: make(map[string]*domain.Tag, len(tags)),
	}
	for _, t := range tags {
		s.add(t)
	}
	return s
}

func (s *snapshot) add(t *domain.Tag) {
	s.byID[t.ID] = t
	if key := normalize.Fold(strings.TrimSpace(t.Name)); key != "" {
		if _, ok := s.byName[key]; !ok {
			s.byName[key] = t
		}
	}
}

func (s *snapshot) match(id, name string) *domain.Tag {
	if t, ok := s.byID[id]; ok {
		return t
	}
	return s.byName[normalize.Fold(name)]
}

// Drift is one corrected usage count.
type Drift struct {
	Category domain.TagCategory `json:"category"`
	TagID    string             `json:"tag_id"`
	Was      int                `json:"was"`
	Now      int                `json:"now"`
}

// ReconcileReport summarizes a reconciliation sweep.
type ReconcileReport struct {
	Entities int     `json:"entities"`
	Tags     int     `json:"tags"`
	Drifts   []Drift `json:"drifts"`
}

// Reconcile recounts every tag reference from a full entity scan and rewrites
// usage counts that disagree. Tags referenced without a document are created.
func (r *Registry) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	counts := make(map[domain.TagCategory]map[string]int, len(domain.TagCategories))
	for _, c := range domain.TagCategories {
		counts[c] = make(map[string]int)
	}

	report := &ReconcileReport{}
	for e, err := range r.store.Entities.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan entities: %w", err)
		}
		report.Entities++
		for _, c := range domain.TagCategories {
			seen := make(map[string]bool)
			for _, id := range e.Tags.Get(c) {
				if !seen[id] {
					seen[id] = true
					counts[c][id]++
				}
			}
		}
	}

	for _, c := range domain.TagCategories {
		tags, err := r.store.ListTags(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("list %s tags: %w", c, err)
		}
		known := make(map[string]bool, len(tags))
		for _, t := range tags {
			known[t.ID] = true
		}
		for id := range counts[c] {
			if known[id] {
				continue
			}
			bg, tone := color.Pastel()
			t, _, err := r.store.CreateTagIfAbsent(ctx, &domain.Tag{
				ID: id, Category: c, Name: id, Color: bg, TextTone: string(tone), CreatedAt: time.Now(),
			})
			if err != nil {
				return nil, fmt.Errorf("restore tag %s/%s: %w", c, id, err)
			}
			tags = append(tags, t)
		}

		for _, t := range tags {
			report.Tags++
			want := counts[c][t.ID]
			if t.UsageCount == want {
				continue
			}
			was, err := r.store.SetTagUsage(ctx, c, t.ID, want)
			if err != nil {
				return nil, fmt.Errorf("set usage %s/%s: %w", c, t.ID, err)
			}
			report.Drifts = append(report.Drifts, Drift{Category: c, TagID: t.ID, Was: was, Now: want})
			metrics.TagDriftCorrected()
		}
	}

	r.logger.Info("tag reconciliation complete",
		"entities", report.Entities,
		"tags", report.Tags,
		"corrected", len(report.Drifts),
	)
	return report, nil
}
