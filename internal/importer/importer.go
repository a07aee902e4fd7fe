// Package importer bulk-upserts entities from the CSV interchange format and
// exports them back to it.
//
// An import runs in two phases. Parse reads the whole document and rejects it
// before any write if a structured cell is malformed. Run then applies rows in
// fixed-size chunks, each chunk committed as one batch together with its tag
// usage deltas. Row-level problems are counted, never fatal.
package importer

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/id"
	"github.com/orbitapp/orbit-server/internal/metrics"
	"github.com/orbitapp/orbit-server/internal/normalize"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

// DefaultChunkSize is the number of rows committed per batch.
const DefaultChunkSize = 300

var errShortRow = errors.New("row has fewer cells than headers")

// Choice resolves a duplicate-name conflict.
type Choice string

const (
	// ChoiceOverride updates the existing entity with the row.
	ChoiceOverride Choice = "override"
	// ChoiceCreate inserts a new entity with the same name.
	ChoiceCreate Choice = "create"
)

// Valid reports whether c is a known choice.
func (c Choice) Valid() bool {
	return c == ChoiceOverride || c == ChoiceCreate
}

// Duplicate is a row name that matches an entity the caller already owns.
type Duplicate struct {
	Name       string `json:"name"`
	ExistingID string `json:"existing_id"`
}

// Report aggregates the outcome of one import run.
type Report struct {
	RunID      string   `json:"run_id"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Errors     int      `json:"errors"`
	ErrorNames []string `json:"error_names,omitempty"`
}

func (r *Report) fail(names ...string) {
	r.Errors += len(names)
	r.ErrorNames = append(r.ErrorNames, names...)
}

// Importer upserts parsed rows for one user at a time.
type Importer struct {
	store     *store.Store
	tags      *tagging.Registry
	chunkSize int
	logger    *slog.Logger
}

// New creates an importer. A non-positive chunkSize uses DefaultChunkSize.
func New(s *store.Store, tags *tagging.Registry, chunkSize int, logger *slog.Logger) *Importer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: s, tags: tags, chunkSize: chunkSize, logger: logger}
}

// Plan lists the rows that would collide with entities userID already owns:
// rows without an entity id whose name matches an owned entity's name,
// compared case-insensitively. The caller picks a Choice for each before Run.
func (im *Importer) Plan(ctx context.Context, userID string, rows []*Row) ([]Duplicate, error) {
	var names []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Short || r.EntityID != "" || r.Name == "" {
			continue
		}
		if k := normalize.Fold(r.Name); !seen[k] {
			seen[k] = true
			names = append(names, r.Name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	found, err := im.store.FindOwnedByNames(ctx, userID, names)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*domain.Entity, len(found))
	for _, e := range found {
		k := normalize.Fold(strings.TrimSpace(e.Name))
		if _, ok := byName[k]; !ok {
			byName[k] = e
		}
	}

	var out []Duplicate
	for _, n := range names {
		if e, ok := byName[normalize.Fold(n)]; ok {
			out = append(out, Duplicate{Name: n, ExistingID: e.ID})
		}
	}
	return out, nil
}

// Run imports rows for userID. choices maps duplicate names (as returned by
// Plan) to a Choice; names without a choice are overridden.
//
// Cancelling ctx stops before the next chunk; the partial report is returned
// with the context error.
func (im *Importer) Run(ctx context.Context, userID string, rows []*Row, choices map[string]Choice) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	start := time.Now()

	dups, err := im.Plan(ctx, userID, rows)
	if err != nil {
		return nil, err
	}

	st := newRunState(im, userID, dups, choices)
	im.logger.Info("import started",
		"run_id", report.RunID,
		"user_id", userID,
		"rows", len(rows),
		"duplicates", len(dups),
	)

	for chunk := range slices.Chunk(rows, im.chunkSize) {
		if err := ctx.Err(); err != nil {
			im.finish(report, start)
			return report, err
		}
		im.runChunk(ctx, st, chunk, report)
	}

	im.finish(report, start)
	return report, nil
}

func (im *Importer) finish(report *Report, start time.Time) {
	metrics.ImportRows(metrics.OutcomeCreated, report.Created)
	metrics.ImportRows(metrics.OutcomeUpdated, report.Updated)
	metrics.ImportRows(metrics.OutcomeRowSkipped, report.Skipped)
	metrics.ImportRows(metrics.OutcomeRowError, report.Errors)

	im.logger.Info("import complete",
		"run_id", report.RunID,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"duration", time.Since(start),
	)
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// runChunk stages every row of chunk into one batch and commits it.
// A failed commit turns every staged row of the chunk into an error.
func (im *Importer) runChunk(ctx context.Context, st *runState, chunk []*Row, report *Report) {
	b := im.store.NewBatch()
	var created, updated int
	var staged []string
	var stagedNames []string
	snapshot := maps.Clone(st.latest)

	for _, row := range chunk {
		out, e, err := st.stage(ctx, b, row)
		if err != nil {
			im.logger.Warn("import row failed",
				"run_id", report.RunID,
				"line", row.Line,
				"name", row.label(),
				"error", err,
			)
			report.fail(row.label())
			continue
		}
		switch out {
		case outcomeSkipped:
			report.Skipped++
			continue
		case outcomeCreated:
			created++
		case outcomeUpdated:
			updated++
		}
		staged = append(staged, e.ID)
		stagedNames = append(stagedNames, row.label())
	}

	if b.Len() == 0 {
		return
	}
	if err := b.Commit(ctx); err != nil {
		im.logger.Error("import chunk failed",
			"run_id", report.RunID,
			"rows", len(staged),
			"error", err,
		)
		report.fail(stagedNames...)
		st.latest = snapshot
		return
	}
	report.Created += created
	report.Updated += updated
}

// runState carries what one run has learned so far: duplicate targets, tag ids
// already resolved and the latest version of every entity it has written.
type runState struct {
	im      *Importer
	userID  string
	dups    map[string]string
	choices map[string]Choice
	tagIDs  map[domain.TagCategory]map[string]string
	latest  map[string]*domain.Entity
}

func newRunState(im *Importer, userID string, dups []Duplicate, choices map[string]Choice) *runState {
	st := &runState{
		im:      im,
		userID:  userID,
		dups:    make(map[string]string, len(dups)),
		choices: make(map[string]Choice, len(choices)),
		tagIDs:  make(map[domain.TagCategory]map[string]string, len(domain.TagCategories)),
		latest:  make(map[string]*domain.Entity),
	}
	for _, d := range dups {
		st.dups[normalize.Fold(d.Name)] = d.ExistingID
	}
	for name, c := range choices {
		st.choices[normalize.Fold(strings.TrimSpace(name))] = c
	}
	for _, c := range domain.TagCategories {
		st.tagIDs[c] = make(map[string]string)
	}
	return st
}

func (st *runState) choice(name string) Choice {
	if c, ok := st.choices[normalize.Fold(name)]; ok && c.Valid() {
		return c
	}
	return ChoiceOverride
}

// load returns the newest known version of an entity, or nil if it does not exist.
func (st *runState) load(ctx context.Context, entityID string) (*domain.Entity, error) {
	if e, ok := st.latest[entityID]; ok {
		return e, nil
	}
	e, err := st.im.store.Entities.Get(ctx, entityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

// stage resolves the target of row and queues its writes on b.
//
// Target precedence: an explicit entity id, then the existing entity of a
// duplicate name marked override, else a new entity.
func (st *runState) stage(ctx context.Context, b *store.Batch, row *Row) (outcome, *domain.Entity, error) {
	if row.Short {
		return 0, nil, errShortRow
	}
	if row.EntityID == "" && row.Name == "" {
		return outcomeSkipped, nil, nil
	}

	var existing *domain.Entity
	var err error
	switch {
	case row.EntityID != "":
		existing, err = st.load(ctx, row.EntityID)
		if err != nil {
			return 0, nil, err
		}
		if existing != nil && !existing.IsOwnedBy(st.userID) {
			return outcomeSkipped, nil, nil
		}
	case st.choice(row.Name) == ChoiceOverride:
		if dupID, ok := st.dups[normalize.Fold(row.Name)]; ok {
			existing, err = st.load(ctx, dupID)
			if err != nil {
				return 0, nil, err
			}
		}
	}

	refs, err := st.resolveTags(ctx, row)
	if err != nil {
		return 0, nil, err
	}

	var e *domain.Entity
	if existing != nil {
		cp := *existing
		e = &cp
		e.Touch()
	} else {
		e = &domain.Entity{OwnerID: st.userID}
		e.ID = row.EntityID
		if e.ID == "" {
			if e.ID, err = id.Generate(id.PrefixEntity); err != nil {
				return 0, nil, err
			}
		}
		e.InitTimestamps()
	}

	e.Type = row.Type
	if row.Name != "" || existing == nil {
		e.Name = row.Name
	}
	e.Info = row.Info
	e.Tags = refs
	e.Contact = row.Contact
	e.Addresses = row.Addresses
	e.Dates = row.Dates

	out := outcomeCreated
	if existing != nil {
		b.SetEntity(e)
		st.im.tags.QueueRefs(b, existing.Tags, refs)
		out = outcomeUpdated
	} else {
		b.CreateEntity(e)
		st.im.tags.QueueRefs(b, nil, refs)
	}
	st.latest[e.ID] = e
	return out, e, nil
}

// resolveTags turns the row's tag names into ids, creating missing tags.
// Names already resolved earlier in the run are not looked up again.
func (st *runState) resolveTags(ctx context.Context, row *Row) (domain.TagRefs, error) {
	refs := make(domain.TagRefs, len(domain.TagCategories))
	for _, c := range domain.TagCategories {
		known := st.tagIDs[c]

		var pending []string
		for _, name := range row.TagNames[c] {
			if k := normalize.TagID(name); k != "" && known[k] == "" && !slices.Contains(pending, name) {
				pending = append(pending, name)
			}
		}
		if len(pending) > 0 {
			tags, err := st.im.tags.Ensure(ctx, st.userID, c, pending)
			if err != nil {
				return nil, err
			}
			for _, name := range pending {
				k := normalize.TagID(name)
				known[k] = k
				for _, t := range tags {
					if t.ID == k || normalize.EqualFold(t.Name, strings.TrimSpace(name)) {
						known[k] = t.ID
						break
					}
				}
			}
		}

		var ids []string
		for _, name := range row.TagNames[c] {
			if tid := known[normalize.TagID(name)]; tid != "" && !slices.Contains(ids, tid) {
				ids = append(ids, tid)
			}
		}
		refs.Set(c, ids)
	}
	return refs, nil
}
