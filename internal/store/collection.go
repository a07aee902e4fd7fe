package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Collection provides generic document operations for a domain type.
type Collection[T any] struct {
	store    *Store
	prefix   string
	name     string
	idOf     func(*T) string
	audience func(*T) []string
	indexes  []Index[T]
}

// Index defines a multi-valued secondary index. Several documents may share a
// value, and one document may produce several values.
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewCollection creates a collection stored under prefix.
func NewCollection[T any](s *Store, prefix, name string, idOf func(*T) string) *Collection[T] {
	return &Collection[T]{
		store:  s,
		prefix: prefix,
		name:   name,
		idOf:   idOf,
	}
}

// WithIndex adds a secondary index. keyGen values must be built with IndexValue.
func (c *Collection[T]) WithIndex(name string, keyGen func(*T) []string) *Collection[T] {
	c.indexes = append(c.indexes, Index[T]{name: name, keyGen: keyGen})
	return c
}

// WithAudience sets the function naming the users whose views a document appears in.
func (c *Collection[T]) WithAudience(fn func(*T) []string) *Collection[T] {
	c.audience = fn
	return c
}

// Name returns the collection name used in change events.
func (c *Collection[T]) Name() string { return c.name }

func (c *Collection[T]) usersOf(doc *T) []string {
	if doc == nil || c.audience == nil {
		return nil
	}
	return c.audience(doc)
}

func (c *Collection[T]) index(name string) (Index[T], bool) {
	for _, idx := range c.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return Index[T]{}, false
}

// getTxn loads a document inside a transaction.
func (c *Collection[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	key := buildKey(c.prefix, id)
	defer releaseKey(key)

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var doc T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", c.name, err)
	}
	return &doc, nil
}

// putTxn writes a document and reconciles its index entries with the previous version.
func (c *Collection[T]) putTxn(txn *badger.Txn, doc *T, cs *changeSet) error {
	id := c.idOf(doc)
	if id == "" {
		return ErrInvalidInput.WithMessagef("%s id is required", c.name)
	}

	old, err := c.getTxn(txn, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.name, err)
	}
	if err := txn.Set([]byte(c.prefix+id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	for _, idx := range c.indexes {
		newVals := idx.keyGen(doc)
		var oldVals []string
		if old != nil {
			oldVals = idx.keyGen(old)
		}
		for _, v := range oldVals {
			if slices.Contains(newVals, v) {
				continue
			}
			if err := txn.Delete(indexKey(c.prefix, idx.name, v, id)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
		for _, v := range newVals {
			if slices.Contains(oldVals, v) {
				continue
			}
			if err := txn.Set(indexKey(c.prefix, idx.name, v, id), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}

	if cs != nil {
		cs.touch(c.name, id, append(c.usersOf(old), c.usersOf(doc)...)...)
	}
	return nil
}

// deleteTxn removes a document and its index entries. A missing document is not an error;
// the returned document is nil in that case.
func (c *Collection[T]) deleteTxn(txn *badger.Txn, id string, cs *changeSet) (*T, error) {
	old, err := c.getTxn(txn, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, idx := range c.indexes {
		for _, v := range idx.keyGen(old) {
			if err := txn.Delete(indexKey(c.prefix, idx.name, v, id)); err != nil {
				return nil, fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	if err := txn.Delete([]byte(c.prefix + id)); err != nil {
		return nil, fmt.Errorf("failed to delete key: %w", err)
	}

	if cs != nil {
		cs.touch(c.name, id, c.usersOf(old)...)
	}
	return old, nil
}

// idsByIndexTxn returns the ids of documents carrying value in the named index.
func (c *Collection[T]) idsByIndexTxn(txn *badger.Txn, name, value string) ([]string, error) {
	if _, ok := c.index(name); !ok {
		return nil, fmt.Errorf("unknown index %s on %s", name, c.name)
	}

	prefix := buildIndexKey(c.prefix, name, value, "")
	defer releaseKey(prefix)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			ids = append(ids, string(val))
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// Get retrieves a document by id. Returns ErrNotFound if it does not exist.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc *T
	err := c.store.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = c.getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetMany loads documents by id in input order, silently skipping missing ones.
func (c *Collection[T]) GetMany(ctx context.Context, ids []string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(ids))
	err := c.store.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			doc, err := c.getTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByIndex returns every document whose index values include value.
// Plain values are escaped; use IndexValue for composite values.
func (c *Collection[T]) FindByIndex(ctx context.Context, name string, value ...string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*T
	err := c.store.db.View(func(txn *badger.Txn) error {
		ids, err := c.idsByIndexTxn(txn, name, IndexValue(value...))
		if err != nil {
			return err
		}
		for _, id := range ids {
			doc, err := c.getTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create writes a new document. Returns ErrAlreadyExists if the id is taken.
func (c *Collection[T]) Create(ctx context.Context, doc *T) error {
	return c.store.NewBatch().add(c.createOp(doc)).Commit(ctx)
}

// Put writes a document, replacing any previous version.
func (c *Collection[T]) Put(ctx context.Context, doc *T) error {
	return c.store.NewBatch().add(c.putOp(doc)).Commit(ctx)
}

// Delete removes a document. Deleting a missing document is a no-op.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.NewBatch().add(c.deleteOp(id)).Commit(ctx)
}

func (c *Collection[T]) createOp(doc *T) op {
	return func(txn *badger.Txn, cs *changeSet) error {
		if _, err := c.getTxn(txn, c.idOf(doc)); err == nil {
			return ErrAlreadyExists.WithMessagef("%s %s already exists", c.name, c.idOf(doc))
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return c.putTxn(txn, doc, cs)
	}
}

func (c *Collection[T]) putOp(doc *T) op {
	return func(txn *badger.Txn, cs *changeSet) error {
		return c.putTxn(txn, doc, cs)
	}
}

func (c *Collection[T]) deleteOp(id string) op {
	return func(txn *badger.Txn, cs *changeSet) error {
		_, err := c.deleteTxn(txn, id, cs)
		return err
	}
}

// List returns an iterator over all documents in key order.
func (c *Collection[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = c.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(c.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(c.prefix)); it.ValidForPrefix([]byte(c.prefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				if strings.HasPrefix(string(it.Item().Key()[len(c.prefix):]), "idx:") {
					continue
				}

				var doc T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &doc)
				}); err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&doc, nil) {
					return nil // Consumer stopped early
				}
			}
			return nil
		})
	}
}
