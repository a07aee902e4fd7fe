package store

import (
	"context"
	"errors"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/orbitapp/orbit-server/internal/domain"
)

// Capabilities describes what a single entity query may express.
// A query carries at most MaxArrayPredicates array predicates (array-contains on
// the audience field or array-contains-any on a tag category) and every "in"
// set holds at most MaxInValues values.
type Capabilities struct {
	MaxArrayPredicates int `json:"max_array_predicates"`
	MaxInValues        int `json:"max_in_values"`
}

// DefaultCapabilities matches the document backend the data model was built for.
var DefaultCapabilities = Capabilities{MaxArrayPredicates: 1, MaxInValues: 10}

func (c Capabilities) normalized() Capabilities {
	c.MaxArrayPredicates = max(c.MaxArrayPredicates, 1)
	c.MaxInValues = max(c.MaxInValues, 1)
	return c
}

// Audience selects which ordered index a query walks.
type Audience string

const (
	// AudienceOwner matches entities with OwnerID == UserID (equality predicate).
	AudienceOwner Audience = "owner"
	// AudienceViewer matches entities whose ViewerIDs contain UserID (array predicate).
	AudienceViewer Audience = "viewer"
)

// Query is one server-side entity query. Results are ordered by creation time,
// newest first.
type Query struct {
	Audience    Audience
	UserID      string
	TypesIn     []domain.EntityType
	TagCategory domain.TagCategory
	TagsAny     []string
	After       string // opaque cursor from a previous Page
	Limit       int
}

// ArrayPredicates counts the array predicates the query uses.
func (q Query) ArrayPredicates() int {
	n := 0
	if q.Audience == AudienceViewer {
		n++
	}
	if len(q.TagsAny) > 0 {
		n++
	}
	return n
}

// Validate rejects queries the backend cannot execute.
func (q Query) Validate(c Capabilities) error {
	switch {
	case q.UserID == "":
		return ErrInvalidInput.WithMessage("query requires a user id")
	case q.Audience != AudienceOwner && q.Audience != AudienceViewer:
		return ErrInvalidInput.WithMessagef("unknown audience %q", q.Audience)
	case q.ArrayPredicates() > c.MaxArrayPredicates:
		return ErrUnsupportedQuery.WithMessagef("query uses %d array predicates, backend allows %d",
			q.ArrayPredicates(), c.MaxArrayPredicates)
	case len(q.TypesIn) > c.MaxInValues:
		return ErrUnsupportedQuery.WithMessagef("type filter has %d values, backend allows %d",
			len(q.TypesIn), c.MaxInValues)
	case len(q.TagsAny) > c.MaxInValues:
		return ErrUnsupportedQuery.WithMessagef("tag filter has %d values, backend allows %d",
			len(q.TagsAny), c.MaxInValues)
	case len(q.TagsAny) > 0 && !q.TagCategory.Valid():
		return ErrInvalidInput.WithMessagef("unknown tag category %q", q.TagCategory)
	}
	return nil
}

func (q Query) matches(e *domain.Entity) bool {
	if len(q.TypesIn) > 0 && !slices.Contains(q.TypesIn, e.Type) {
		return false
	}
	if len(q.TagsAny) > 0 && !e.Tags.HasAny(q.TagCategory, q.TagsAny) {
		return false
	}
	return true
}

// QueryEntities runs q against the audience index and returns one page.
func (s *Store) QueryEntities(ctx context.Context, q Query) (*Page[*domain.Entity], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(s.caps); err != nil {
		return nil, err
	}
	limit := clampLimit(q.Limit)

	indexName := idxOwner
	if q.Audience == AudienceViewer {
		indexName = idxViewer
	}
	prefix := buildIndexKey(entityPrefix, indexName, IndexValue(q.UserID), "")
	defer releaseKey(prefix)

	after, err := DecodeCursor(q.After)
	if err != nil {
		return nil, err
	}
	if after != "" {
		if err := cursorWithin(after, string(prefix)); err != nil {
			return nil, err
		}
	}

	page := &Page[*domain.Entity]{Items: make([]*domain.Entity, 0, limit)}
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if after != "" {
			start = []byte(after)
		}

		var lastKey string
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			if key == after {
				continue
			}

			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			e, err := s.Entities.getTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !q.matches(e) {
				continue
			}

			if len(page.Items) == limit {
				page.HasMore = true
				break
			}
			page.Items = append(page.Items, e)
			lastKey = key
		}

		if page.HasMore {
			page.NextCursor = EncodeCursor(lastKey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// FindOwnedByNames returns entities owned by userID whose case-folded name
// matches one of names. Names are looked up in chunks of MaxInValues.
func (s *Store) FindOwnedByNames(ctx context.Context, userID string, names []string) ([]*domain.Entity, error) {
	var out []*domain.Entity
	seen := make(map[string]bool)
	for chunk := range slices.Chunk(names, s.caps.MaxInValues) {
		for _, name := range chunk {
			found, err := s.Entities.FindByIndex(ctx, idxOwnerName, userID, foldName(name))
			if err != nil {
				return nil, err
			}
			for _, e := range found {
				if !seen[e.ID] {
					seen[e.ID] = true
					out = append(out, e)
				}
			}
		}
	}
	return out, nil
}

// EntitiesRelatedTo returns entities owned by ownerID whose relations include targetID.
func (s *Store) EntitiesRelatedTo(ctx context.Context, ownerID, targetID string) ([]*domain.Entity, error) {
	found, err := s.Entities.FindByIndex(ctx, idxRelation, targetID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(found, func(e *domain.Entity) bool { return e.OwnerID != ownerID }), nil
}

// SharePacksContaining returns packs sent by senderID that include entityID.
func (s *Store) SharePacksContaining(ctx context.Context, senderID, entityID string) ([]*domain.SharePack, error) {
	found, err := s.SharePacks.FindByIndex(ctx, idxEntity, entityID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(found, func(p *domain.SharePack) bool { return p.SenderID != senderID }), nil
}

// SharePacksFor returns packs where userID is the recipient (incoming) or the sender.
func (s *Store) SharePacksFor(ctx context.Context, userID string, incoming bool) ([]*domain.SharePack, error) {
	idx := idxSender
	if incoming {
		idx = idxRecipient
	}
	return s.SharePacks.FindByIndex(ctx, idx, userID)
}

// InteractionsReferencing returns interactions owned by ownerID that reference entityID.
func (s *Store) InteractionsReferencing(ctx context.Context, ownerID, entityID string) ([]*domain.Interaction, error) {
	found, err := s.Interactions.FindByIndex(ctx, idxEntity, entityID)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		return found, nil
	}
	return slices.DeleteFunc(found, func(i *domain.Interaction) bool { return i.OwnerID != ownerID }), nil
}

// BitsFor returns bits attached to entityID. A non-empty authorID keeps only that author's bits.
func (s *Store) BitsFor(ctx context.Context, entityID, authorID string) ([]*domain.Bit, error) {
	found, err := s.Bits.FindByIndex(ctx, idxEntity, entityID)
	if err != nil {
		return nil, err
	}
	if authorID == "" {
		return found, nil
	}
	return slices.DeleteFunc(found, func(b *domain.Bit) bool { return b.AuthorID != authorID }), nil
}
