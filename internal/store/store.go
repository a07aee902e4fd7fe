// Package store persists the relationship graph in Badger.
//
// Documents are JSON values under "<prefix><id>". Secondary indexes are
// multi-valued key-only entries under "<prefix>idx:<name>:<value>:<id>", which
// gives array-contains lookups. The store deliberately has no foreign keys and
// no cascading deletes: consistency is maintained by the callers through Batch.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/normalize"
)

// Key prefixes.
const (
	entityPrefix      = "entity:"
	interactionPrefix = "interaction:"
	sharePackPrefix   = "pack:"
	bitPrefix         = "bit:"
	tagPrefix         = "tag:"
)

// Index names.
const (
	idxOwner     = "owner"
	idxViewer    = "viewer"
	idxRelation  = "relation"
	idxOwnerName = "owner_name"
	idxEntity    = "entity"
	idxSender    = "sender"
	idxRecipient = "recipient"
	idxAuthor    = "author"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	eventEmitter EventEmitter
	caps         Capabilities

	Entities     *Collection[domain.Entity]
	Interactions *Collection[domain.Interaction]
	SharePacks   *Collection[domain.SharePack]
	Bits         *Collection[domain.Bit]
}

// Option configures a Store.
type Option func(*Store)

// WithCapabilities overrides the default backend query limits.
func WithCapabilities(c Capabilities) Option {
	return func(s *Store) { s.caps = c }
}

// New creates a new Store instance with the given database path and event emitter.
func New(path string, logger *slog.Logger, emitter EventEmitter, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil            // Disable Badger's internal logging
	bopts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	bopts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if emitter == nil {
		emitter = NoopEmitter{}
	}

	s := &Store{
		db:           db,
		logger:       logger,
		eventEmitter: emitter,
		caps:         DefaultCapabilities,
	}
	for _, o := range opts {
		o(s)
	}
	s.caps = s.caps.normalized()

	s.initEntities()
	s.initInteractions()
	s.initSharePacks()
	s.initBits()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Capabilities returns the query limits this backend enforces.
func (s *Store) Capabilities() Capabilities {
	return s.caps
}

// Ping verifies the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("database closed")
	}
	return nil
}

func (s *Store) initEntities() {
	s.Entities = NewCollection(s, entityPrefix, CollectionEntities, func(e *domain.Entity) string { return e.ID }).
		WithIndex(idxOwner, func(e *domain.Entity) []string {
			return []string{IndexValue(e.OwnerID, invertedTime(e.CreatedAt))}
		}).
		WithIndex(idxViewer, func(e *domain.Entity) []string {
			out := make([]string, 0, len(e.ViewerIDs))
			for _, v := range e.ViewerIDs {
				out = append(out, IndexValue(v, invertedTime(e.CreatedAt)))
			}
			return out
		}).
		WithIndex(idxRelation, func(e *domain.Entity) []string {
			out := make([]string, 0, len(e.Relations))
			for _, r := range e.Relations {
				out = append(out, IndexValue(r))
			}
			return out
		}).
		WithIndex(idxOwnerName, func(e *domain.Entity) []string {
			return []string{IndexValue(e.OwnerID, foldName(e.Name))}
		}).
		WithAudience(func(e *domain.Entity) []string {
			return append([]string{e.OwnerID}, e.ViewerIDs...)
		})
}

func (s *Store) initInteractions() {
	s.Interactions = NewCollection(s, interactionPrefix, CollectionInteractions, func(i *domain.Interaction) string { return i.ID }).
		WithIndex(idxEntity, func(i *domain.Interaction) []string {
			out := make([]string, 0, len(i.EntityRefs))
			for _, r := range i.EntityRefs {
				out = append(out, IndexValue(r))
			}
			return out
		}).
		WithIndex(idxOwner, func(i *domain.Interaction) []string {
			return []string{IndexValue(i.OwnerID)}
		}).
		WithAudience(func(i *domain.Interaction) []string {
			return []string{i.OwnerID}
		})
}

func (s *Store) initSharePacks() {
	s.SharePacks = NewCollection(s, sharePackPrefix, CollectionSharePacks, func(p *domain.SharePack) string { return p.ID }).
		WithIndex(idxEntity, func(p *domain.SharePack) []string {
			out := make([]string, 0, len(p.EntityIDs))
			for _, id := range p.EntityIDs {
				out = append(out, IndexValue(id))
			}
			return out
		}).
		WithIndex(idxSender, func(p *domain.SharePack) []string {
			return []string{IndexValue(p.SenderID)}
		}).
		WithIndex(idxRecipient, func(p *domain.SharePack) []string {
			return []string{IndexValue(p.RecipientID)}
		}).
		WithAudience(func(p *domain.SharePack) []string {
			return []string{p.SenderID, p.RecipientID}
		})
}

func (s *Store) initBits() {
	s.Bits = NewCollection(s, bitPrefix, CollectionBits, func(b *domain.Bit) string { return b.ID }).
		WithIndex(idxEntity, func(b *domain.Bit) []string {
			return []string{IndexValue(b.EntityID)}
		}).
		WithIndex(idxAuthor, func(b *domain.Bit) []string {
			return []string{IndexValue(b.AuthorID)}
		}).
		WithAudience(func(b *domain.Bit) []string {
			return []string{b.AuthorID}
		})
}

func foldName(name string) string {
	return normalize.Fold(strings.TrimSpace(name))
}
