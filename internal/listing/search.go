package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/metrics"
	"github.com/orbitapp/orbit-server/internal/normalize"
)

// Search pages every planned stream to exhaustion, resolves the tag names the
// results reference and keeps entities whose name, info or any tag name contains
// the term. Results are never truncated.
func (e *Engine) Search(ctx context.Context, userID string, req Request) (*Result, error) {
	start := time.Now()
	defer metrics.ObserveListing("search", start)

	term := normalize.SearchTerm(req.Term)
	plan := e.planner.Plan(userID, req)

	all := make([][]*domain.Entity, len(plan.Streams))
	errs := make([]error, len(plan.Streams))
	var g errgroup.Group
	for i, sp := range plan.Streams {
		g.Go(func() error {
			items, err := e.fetchAll(ctx, sp)
			all[i], errs[i] = items, err
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Search: true}
	var lists [][]*domain.Entity
	for i, sp := range plan.Streams {
		if errs[i] != nil {
			res.Degraded = append(res.Degraded, sp.Name)
			metrics.StreamDegraded(string(sp.Name))
			e.logger.Warn("search stream failed", "stream", sp.Name, "error", errs[i])
			continue
		}
		lists = append(lists, all[i])
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := Merge(lists...)
	names, err := e.resolveTagNames(ctx, candidates)
	if err != nil {
		return nil, err
	}

	res.Items = make([]*domain.Entity, 0)
	for _, ent := range candidates {
		if matchesTerm(ent, term, names) {
			res.Items = append(res.Items, ent)
		}
	}

	e.logger.Debug("search complete",
		"user_id", userID,
		"candidates", len(candidates),
		"matches", len(res.Items),
	)
	return res, nil
}

// fetchAll pages one stream until the backend reports a short page.
func (e *Engine) fetchAll(ctx context.Context, sp StreamPlan) ([]*domain.Entity, error) {
	var out []*domain.Entity
	q := sp.Query
	q.Limit = e.cfg.SearchPageSize
	for {
		page, err := e.store.QueryEntities(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, filterInPlace(page.Items, sp.Keep)...)
		if !page.HasMore || len(page.Items) < e.cfg.SearchPageSize {
			return out, nil
		}
		q.After = page.NextCursor
	}
}

// tagNames maps category to tag id to folded display name.
type tagNames map[domain.TagCategory]map[string]string

// resolveTagNames looks up every tag id referenced by items, one concurrent
// lookup per category, each chunked to the backend's "in" limit.
func (e *Engine) resolveTagNames(ctx context.Context, items []*domain.Entity) (tagNames, error) {
	ids := make(map[domain.TagCategory][]string, len(domain.TagCategories))
	seen := make(map[domain.TagCategory]map[string]bool, len(domain.TagCategories))
	for _, c := range domain.TagCategories {
		seen[c] = make(map[string]bool)
	}
	for _, ent := range items {
		for _, c := range domain.TagCategories {
			for _, id := range ent.Tags.Get(c) {
				if !seen[c][id] {
					seen[c][id] = true
					ids[c] = append(ids[c], id)
				}
			}
		}
	}

	results := make([]map[string]string, len(domain.TagCategories))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range domain.TagCategories {
		if len(ids[c]) == 0 {
			continue
		}
		g.Go(func() error {
			tags, err := e.store.GetTagsByIDs(gctx, c, ids[c])
			if err != nil {
				return fmt.Errorf("resolve %s tags: %w", c, err)
			}
			m := make(map[string]string, len(tags))
			for _, t := range tags {
				m[t.ID] = normalize.Fold(t.Name)
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(tagNames, len(domain.TagCategories))
	for i, c := range domain.TagCategories {
		names[c] = results[i]
	}
	return names, nil
}

func matchesTerm(e *domain.Entity, term string, names tagNames) bool {
	if normalize.ContainsFold(e.Name, term) || normalize.ContainsFold(e.Info, term) {
		return true
	}
	for _, c := range domain.TagCategories {
		for _, id := range e.Tags.Get(c) {
			if name, ok := names[c][id]; ok && strings.Contains(name, term) {
				return true
			}
		}
	}
	return false
}
