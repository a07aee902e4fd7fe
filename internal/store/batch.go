package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"

	"github.com/orbitapp/orbit-server/internal/domain"
)

// Replay schedule after a Badger write conflict.
const (
	maxConflictRetries = 3
	conflictBackoff    = 5 * time.Millisecond
	maxConflictBackoff = 50 * time.Millisecond
)

func conflictSchedule(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = conflictBackoff
	exp.Multiplier = 2
	exp.MaxInterval = maxConflictBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, maxConflictRetries), ctx)
}

type op func(txn *badger.Txn, cs *changeSet) error

// Batch is the atomic write unit: every operation commits in one Badger
// transaction, or none does. Operations that read a document (trim a share
// pack, remove a relation) read it inside that same transaction.
type Batch struct {
	store *Store
	ops   []op
}

// NewBatch starts an empty batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s}
}

func (b *Batch) add(o op) *Batch {
	b.ops = append(b.ops, o)
	return b
}

// Len returns the number of queued operations.
func (b *Batch) Len() int { return len(b.ops) }

// Commit applies all queued operations atomically and then emits change events.
// Conflicting concurrent writers cause the whole batch to be replayed.
func (b *Batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.ops) == 0 {
		return nil
	}

	var cs *changeSet
	attempt := 0
	err := backoff.RetryNotify(func() error {
		cs = newChangeSet()
		err := b.store.db.Update(func(txn *badger.Txn) error {
			for _, o := range b.ops {
				if err := o(txn, cs); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}, conflictSchedule(ctx), func(_ error, wait time.Duration) {
		attempt++
		if b.store.logger != nil {
			b.store.logger.LogAttrs(ctx, slog.LevelDebug, "batch conflict, retrying",
				slog.Int("attempt", attempt),
				slog.Int("ops", len(b.ops)),
				slog.Duration("wait", wait),
			)
		}
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("batch of %d operations too large: %w", len(b.ops), err)
	}
	if err != nil {
		return err
	}

	cs.emit(b.store.eventEmitter)
	return nil
}

// CreateEntity queues a new entity. The commit fails if the id exists.
func (b *Batch) CreateEntity(e *domain.Entity) *Batch {
	return b.add(b.store.Entities.createOp(e))
}

// SetEntity queues an entity upsert.
func (b *Batch) SetEntity(e *domain.Entity) *Batch {
	return b.add(b.store.Entities.putOp(e))
}

// DeleteEntity queues removal of an entity.
func (b *Batch) DeleteEntity(id string) *Batch {
	return b.add(b.store.Entities.deleteOp(id))
}

// RemoveRelation drops targetID from the relations of entityID, if both still apply.
func (b *Batch) RemoveRelation(entityID, targetID string) *Batch {
	return b.add(func(txn *badger.Txn, cs *changeSet) error {
		e, err := b.store.Entities.getTxn(txn, entityID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !e.RemoveRelation(targetID) {
			return nil
		}
		return b.store.Entities.putTxn(txn, e, cs)
	})
}

// AddViewer grants userID view access to entityID. Missing entities are skipped.
func (b *Batch) AddViewer(entityID, userID string) *Batch {
	return b.add(func(txn *badger.Txn, cs *changeSet) error {
		e, err := b.store.Entities.getTxn(txn, entityID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !e.AddViewer(userID) {
			return nil
		}
		return b.store.Entities.putTxn(txn, e, cs)
	})
}

// IncrementTagUsage adjusts a tag's usage count by delta. A missing tag document
// is created on the fly so that drift never fails a batch; counts clamp at zero.
func (b *Batch) IncrementTagUsage(category domain.TagCategory, tagID string, delta int) *Batch {
	return b.add(func(txn *badger.Txn, cs *changeSet) error {
		return b.store.incrementTagTxn(txn, category, tagID, delta, cs)
	})
}

// SetTag queues a tag upsert.
func (b *Batch) SetTag(t *domain.Tag) *Batch {
	return b.add(func(txn *badger.Txn, cs *changeSet) error {
		return b.store.putTagTxn(txn, t, cs)
	})
}

// SetSharePack queues a share pack upsert.
func (b *Batch) SetSharePack(p *domain.SharePack) *Batch {
	return b.add(b.store.SharePacks.putOp(p))
}

// DeleteSharePack queues removal of a share pack.
func (b *Batch) DeleteSharePack(id string) *Batch {
	return b.add(b.store.SharePacks.deleteOp(id))
}

// RemoveShareEntity drops entityID from a pack, deleting the pack when it would become empty.
func (b *Batch) RemoveShareEntity(packID, entityID string) *Batch {
	return b.add(func(txn *badger.Txn, cs *changeSet) error {
		p, err := b.store.SharePacks.getTxn(txn, packID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		remaining, empty := domain.RemoveRef(p.EntityIDs, entityID)
		if empty {
			_, err := b.store.SharePacks.deleteTxn(txn, packID, cs)
			return err
		}
		p.EntityIDs = remaining
		return b.store.SharePacks.putTxn(txn, p, cs)
	})
}

// SetInteraction queues an interaction upsert.
func (b *Batch) SetInteraction(i *domain.Interaction) *Batch {
	return b.add(b.store.Interactions.putOp(i))
}

// DeleteInteraction queues removal of an interaction.
func (b *Batch) DeleteInteraction(id string) *Batch {
	return b.add(b.store.Interactions.deleteOp(id))
}

// RemoveInteractionRef drops entityID from an interaction, deleting it when no refs remain.
func (b *Batch) RemoveInteractionRef(interactionID, entityID string) *Batch {
	return b.add(func(txn *badger.Txn, cs *changeSet) error {
		i, err := b.store.Interactions.getTxn(txn, interactionID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		remaining, empty := domain.RemoveRef(i.EntityRefs, entityID)
		if empty {
			_, err := b.store.Interactions.deleteTxn(txn, interactionID, cs)
			return err
		}
		i.EntityRefs = remaining
		return b.store.Interactions.putTxn(txn, i, cs)
	})
}

// SetBit queues a bit upsert.
func (b *Batch) SetBit(bit *domain.Bit) *Batch {
	return b.add(b.store.Bits.putOp(bit))
}

// DeleteBit queues removal of a bit.
func (b *Batch) DeleteBit(id string) *Batch {
	return b.add(b.store.Bits.deleteOp(id))
}
