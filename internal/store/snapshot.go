package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// loadPendingWrites bounds the in-flight batches during Load.
const loadPendingWrites = 256

// Counts is the number of documents per collection.
type Counts struct {
	Entities     int `json:"entities"`
	Interactions int `json:"interactions"`
	SharePacks   int `json:"share_packs"`
	Bits         int `json:"bits"`
	Tags         int `json:"tags"`
}

// Total is the sum of all documents.
func (c Counts) Total() int {
	return c.Entities + c.Interactions + c.SharePacks + c.Bits + c.Tags
}

// Backup writes a full snapshot of the database to w in Badger's backup
// format and returns the version it covers.
func (s *Store) Backup(ctx context.Context, w io.Writer) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	version, err := s.db.Backup(w, 0)
	if err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}
	return version, nil
}

// Load writes a snapshot produced by Backup into the database. Keys in the
// snapshot overwrite existing ones; keys absent from it are kept.
// No change events are emitted.
func (s *Store) Load(ctx context.Context, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Load(r, loadPendingWrites); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// DropAll deletes every key. Used before a full restore.
func (s *Store) DropAll() error {
	return s.db.DropAll()
}

// Count returns the number of stored documents per collection.
// Index entries are not counted.
func (s *Store) Count(ctx context.Context) (Counts, error) {
	var c Counts
	prefixes := []struct {
		prefix string
		dst    *int
	}{
		{entityPrefix, &c.Entities},
		{interactionPrefix, &c.Interactions},
		{sharePackPrefix, &c.SharePacks},
		{bitPrefix, &c.Bits},
		{tagPrefix, &c.Tags},
	}

	err := s.db.View(func(txn *badger.Txn) error {
		for _, p := range prefixes {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(p.prefix)
			idx := p.prefix + "idx:"

			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					it.Close()
					return err
				}
				if strings.HasPrefix(string(it.Item().Key()), idx) {
					continue
				}
				*p.dst++
			}
			it.Close()
		}
		return nil
	})
	return c, err
}
