// Package cascade deletes entities together with every reference other
// documents hold to them.
//
// The store has no foreign keys, so each entity is removed as one unit: tag
// decrements, back-reference cleanup, share pack and interaction trimming, the
// caller's bits and the entity itself commit in a single batch. Units run one
// after another; a failed unit is counted and the loop moves on.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/metrics"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

// errNotOwner marks a unit skipped because the caller does not own the entity.
var errNotOwner = errors.New("caller does not own entity")

// Result aggregates the outcome of a multi-entity delete.
type Result struct {
	Deleted         int      `json:"deleted"`
	SkippedNotOwner int      `json:"skipped_not_owner"`
	Errors          int      `json:"errors"`
	Failed          []string `json:"failed,omitempty"`
}

// RetryPolicy controls how often a failed unit is retried.
// The zero value never retries.
type RetryPolicy struct {
	Attempts   int           // extra attempts after the first
	Backoff    time.Duration // delay before the first retry, doubled each time
	MaxBackoff time.Duration
}

// backOff builds a fresh schedule for one unit.
func (p RetryPolicy) backOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Backoff
	exp.Multiplier = 2
	if p.MaxBackoff > 0 {
		exp.MaxInterval = p.MaxBackoff
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(max(p.Attempts, 0)))
}

// Deleter runs cascading deletes.
type Deleter struct {
	store  *store.Store
	tags   *tagging.Registry
	retry  RetryPolicy
	commit func(context.Context, *store.Batch) error
	logger *slog.Logger
}

// NewDeleter creates a deleter.
func NewDeleter(s *store.Store, tags *tagging.Registry, retry RetryPolicy, logger *slog.Logger) *Deleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deleter{
		store:  s,
		tags:   tags,
		retry:  retry,
		commit: func(ctx context.Context, b *store.Batch) error { return b.Commit(ctx) },
		logger: logger,
	}
}

// DeleteEntities deletes every entity in ids owned by userID.
// Missing entities are skipped silently. Cancelling ctx stops the loop between
// units; a unit that has started always runs to completion.
func (d *Deleter) DeleteEntities(ctx context.Context, userID string, ids []string) (*Result, error) {
	res := &Result{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			d.logOutcome(userID, len(ids), res)
			return res, err
		}

		deleted, err := d.runUnit(context.WithoutCancel(ctx), userID, id)
		switch {
		case errors.Is(err, errNotOwner):
			res.SkippedNotOwner++
			metrics.CascadeUnit(metrics.OutcomeSkipped)
		case err != nil:
			res.Errors++
			res.Failed = append(res.Failed, id)
			metrics.CascadeUnit(metrics.OutcomeFailed)
			d.logger.Error("entity delete failed", "entity_id", id, "user_id", userID, "error", err)
		case deleted:
			res.Deleted++
			metrics.CascadeUnit(metrics.OutcomeDeleted)
		}
	}

	d.logOutcome(userID, len(ids), res)
	return res, nil
}

func (d *Deleter) logOutcome(userID string, requested int, res *Result) {
	d.logger.Info("entity delete finished",
		"user_id", userID,
		"requested", requested,
		"deleted", res.Deleted,
		"skipped_not_owner", res.SkippedNotOwner,
		"errors", res.Errors,
	)
}

// runUnit deletes one entity, retrying per the policy.
// An ownership mismatch is never retried.
func (d *Deleter) runUnit(ctx context.Context, userID, id string) (bool, error) {
	var deleted bool
	attempt := 0
	err := backoff.RetryNotify(func() error {
		var err error
		deleted, err = d.deleteOne(ctx, userID, id)
		if errors.Is(err, errNotOwner) {
			return backoff.Permanent(err)
		}
		return err
	}, d.retry.backOff(), func(err error, wait time.Duration) {
		attempt++
		d.logger.Warn("entity delete retry", "entity_id", id, "attempt", attempt, "wait", wait, "error", err)
	})
	return deleted, err
}

// deleteOne builds and commits the batch for one entity.
// Returns false with no error when the entity is already gone.
func (d *Deleter) deleteOne(ctx context.Context, userID, id string) (bool, error) {
	e, err := d.store.Entities.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load entity: %w", err)
	}
	if !e.IsOwnedBy(userID) {
		return false, errNotOwner
	}

	b, err := d.Plan(ctx, userID, e)
	if err != nil {
		return false, err
	}
	if err := d.commit(ctx, b); err != nil {
		return false, fmt.Errorf("commit cascade: %w", err)
	}
	return true, nil
}

// Plan queues every mutation needed to delete e on behalf of its owner.
func (d *Deleter) Plan(ctx context.Context, userID string, e *domain.Entity) (*store.Batch, error) {
	b := d.store.NewBatch()

	d.tags.QueueRefs(b, e.Tags, nil)

	related, err := d.store.EntitiesRelatedTo(ctx, userID, e.ID)
	if err != nil {
		return nil, fmt.Errorf("find back-references: %w", err)
	}
	for _, other := range related {
		if other.ID != e.ID {
			b.RemoveRelation(other.ID, e.ID)
		}
	}

	packs, err := d.store.SharePacksContaining(ctx, userID, e.ID)
	if err != nil {
		return nil, fmt.Errorf("find share packs: %w", err)
	}
	for _, p := range packs {
		if len(p.EntityIDs) <= 1 {
			b.DeleteSharePack(p.ID)
		} else {
			b.RemoveShareEntity(p.ID, e.ID)
		}
	}

	interactions, err := d.store.InteractionsReferencing(ctx, userID, e.ID)
	if err != nil {
		return nil, fmt.Errorf("find interactions: %w", err)
	}
	for _, i := range interactions {
		if len(i.EntityRefs) <= 1 {
			b.DeleteInteraction(i.ID)
		} else {
			b.RemoveInteractionRef(i.ID, e.ID)
		}
	}

	// Bits written by other users stay behind.
	bits, err := d.store.BitsFor(ctx, e.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("find bits: %w", err)
	}
	for _, bit := range bits {
		b.DeleteBit(bit.ID)
	}

	b.DeleteEntity(e.ID)
	return b, nil
}
