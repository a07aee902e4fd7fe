package listing

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/metrics"
	"github.com/orbitapp/orbit-server/internal/normalize"
	"github.com/orbitapp/orbit-server/internal/store"
)

// Config tunes the engine.
type Config struct {
	PageSize       int
	SearchPageSize int
}

// DefaultConfig returns the standard page sizes.
func DefaultConfig() Config {
	return Config{PageSize: 20, SearchPageSize: 200}
}

// Result is one listing response.
type Result struct {
	Items    []*domain.Entity `json:"items"`
	Cursor   string           `json:"cursor,omitempty"`
	HasMore  bool             `json:"has_more"`
	Degraded []StreamName     `json:"degraded,omitempty"`
	Search   bool             `json:"search"`
}

// Engine answers listing requests.
type Engine struct {
	store   *store.Store
	planner Planner
	cfg     Config
	logger  *slog.Logger
}

// NewEngine creates a listing engine over s.
func NewEngine(s *store.Store, cfg Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = def.SearchPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   s,
		planner: NewPlanner(s.Capabilities()),
		cfg:     cfg,
		logger:  logger,
	}
}

// Planner returns the engine's planner.
func (e *Engine) Planner() Planner { return e.planner }

// List answers a request. A non-blank term switches to search mode; a cursor
// continues a previous listing.
func (e *Engine) List(ctx context.Context, userID string, req Request) (*Result, error) {
	if hasTerm(req.Term) {
		return e.Search(ctx, userID, req)
	}
	if req.Cursor != "" {
		return e.LoadMore(ctx, userID, req)
	}

	start := time.Now()
	defer metrics.ObserveListing("default", start)

	plan := e.planner.Plan(userID, req)
	cursors := make(Cursor, len(plan.Streams))
	for _, sp := range plan.Streams {
		cursors[sp.Name] = ""
	}
	return e.page(ctx, plan, cursors, e.limit(req))
}

// LoadMore returns the next page of every stream that still has a cursor.
// It is a no-op in search mode.
func (e *Engine) LoadMore(ctx context.Context, userID string, req Request) (*Result, error) {
	if hasTerm(req.Term) {
		return &Result{Search: true}, nil
	}

	start := time.Now()
	defer metrics.ObserveListing("load_more", start)

	cursors, err := DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	live := make(Cursor, len(cursors))
	for name, c := range cursors {
		if c != "" {
			live[name] = c
		}
	}
	if len(live) == 0 {
		return &Result{Items: []*domain.Entity{}}, nil
	}
	return e.page(ctx, e.planner.Plan(userID, req), live, e.limit(req))
}

func (e *Engine) limit(req Request) int {
	if req.Limit > 0 {
		return min(req.Limit, store.MaxPageSize)
	}
	return e.cfg.PageSize
}

type streamPage struct {
	items []*domain.Entity
	next  string
	err   error
}

// page queries the streams named in cursors concurrently and merges them.
func (e *Engine) page(ctx context.Context, plan Plan, cursors Cursor, limit int) (*Result, error) {
	pages := make([]streamPage, len(plan.Streams))
	var g errgroup.Group
	for i, sp := range plan.Streams {
		after, ok := cursors[sp.Name]
		if !ok {
			continue
		}
		g.Go(func() error {
			q := sp.Query
			q.After = after
			q.Limit = limit
			p, err := e.store.QueryEntities(ctx, q)
			if err != nil {
				pages[i].err = err
				return nil
			}
			pages[i] = streamPage{items: filterInPlace(p.Items, sp.Keep), next: p.NextCursor}
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	next := Cursor{}
	var lists [][]*domain.Entity
	for i, sp := range plan.Streams {
		if _, ok := cursors[sp.Name]; !ok {
			continue
		}
		if err := pages[i].err; err != nil {
			res.Degraded = append(res.Degraded, sp.Name)
			metrics.StreamDegraded(string(sp.Name))
			e.logger.Warn("listing stream failed", "stream", sp.Name, "error", err)
			continue
		}
		lists = append(lists, pages[i].items)
		if pages[i].next != "" {
			next[sp.Name] = pages[i].next
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Items = Merge(lists...)
	res.Cursor = next.Encode()
	res.HasMore = len(next) > 0
	return res, nil
}

func hasTerm(term string) bool {
	return normalize.SearchTerm(term) != ""
}
