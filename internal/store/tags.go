package store

import (
	"cmp"
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/orbitapp/orbit-server/internal/domain"
)

// tag:{category}:{id} → Tag JSON. Tags are global per category; no ownership.
func tagKey(category domain.TagCategory, id string) []byte {
	return []byte(tagPrefix + string(category) + ":" + IndexValue(id))
}

func tagCategoryPrefix(category domain.TagCategory) []byte {
	return []byte(tagPrefix + string(category) + ":")
}

func (s *Store) getTagTxn(txn *badger.Txn, category domain.TagCategory, id string) (*domain.Tag, error) {
	item, err := txn.Get(tagKey(category, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound.WithMessagef("tag %s/%s not found", category, id)
	}
	if err != nil {
		return nil, err
	}
	var t domain.Tag
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &t)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tag: %w", err)
	}
	return &t, nil
}

func (s *Store) putTagTxn(txn *badger.Txn, t *domain.Tag, cs *changeSet) error {
	if t.ID == "" || !t.Category.Valid() {
		return ErrInvalidInput.WithMessage("tag id and valid category are required")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := txn.Set(tagKey(t.Category, t.ID), data); err != nil {
		return err
	}
	if cs != nil {
		cs.touch(CollectionTags, string(t.Category)+"/"+t.ID)
	}
	return nil
}

// incrementTagTxn adjusts UsageCount by delta, never going below zero.
// A missing tag is upserted with its id as name.
func (s *Store) incrementTagTxn(txn *badger.Txn, category domain.TagCategory, id string, delta int, cs *changeSet) error {
	t, err := s.getTagTxn(txn, category, id)
	if errors.Is(err, ErrNotFound) {
		t = &domain.Tag{ID: id, Category: category, Name: id, CreatedAt: time.Now()}
	} else if err != nil {
		return err
	}

	t.UsageCount = max(t.UsageCount+delta, 0)
	return s.putTagTxn(txn, t, cs)
}

// GetTag retrieves a tag by category and id.
func (s *Store) GetTag(ctx context.Context, category domain.TagCategory, id string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var t *domain.Tag
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		t, err = s.getTagTxn(txn, category, id)
		return err
	})
	return t, err
}

// GetTagsByIDs resolves ids within one category. Lookups run as "in" queries of
// at most MaxInValues ids each. Unknown ids are skipped.
func (s *Store) GetTagsByIDs(ctx context.Context, category domain.TagCategory, ids []string) ([]*domain.Tag, error) {
	out := make([]*domain.Tag, 0, len(ids))
	for chunk := range slices.Chunk(ids, s.caps.MaxInValues) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := s.db.View(func(txn *badger.Txn) error {
			for _, id := range chunk {
				t, err := s.getTagTxn(txn, category, id)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				out = append(out, t)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CreateTagIfAbsent stores t unless a tag with the same id exists in the category.
// It returns the stored tag and whether this call created it.
func (s *Store) CreateTagIfAbsent(ctx context.Context, t *domain.Tag) (*domain.Tag, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var stored *domain.Tag
	var created bool
	cs := newChangeSet()
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := s.getTagTxn(txn, t.Category, t.ID)
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.putTagTxn(txn, t, cs); err != nil {
			return err
		}
		stored, created = t, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	cs.emit(s.eventEmitter)
	return stored, created, nil
}

// ListTags returns every tag in a category, most used first, then by name.
func (s *Store) ListTags(ctx context.Context, category domain.TagCategory) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tags []*domain.Tag
	prefix := tagCategoryPrefix(category)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var t domain.Tag
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return err
			}
			tags = append(tags, &t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(tags, func(a, b *domain.Tag) int {
		if c := cmp.Compare(b.UsageCount, a.UsageCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return tags, nil
}

// SetTagUsage overwrites a tag's usage count. Used by reconciliation only.
// Returns the previous count.
func (s *Store) SetTagUsage(ctx context.Context, category domain.TagCategory, id string, count int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prev := 0
	cs := newChangeSet()
	err := s.db.Update(func(txn *badger.Txn) error {
		t, err := s.getTagTxn(txn, category, id)
		if err != nil {
			return err
		}
		prev = t.UsageCount
		if prev == count {
			return nil
		}
		t.UsageCount = count
		return s.putTagTxn(txn, t, cs)
	})
	if err != nil {
		return 0, err
	}
	cs.emit(s.eventEmitter)
	return prev, nil
}
