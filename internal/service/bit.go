package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/id"
	"github.com/orbitapp/orbit-server/internal/store"
)

// maxBitLength bounds a bit's text in runes.
const maxBitLength = 2000

// BitService manages short notes attached to entities.
type BitService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewBitService creates a new bit service.
func NewBitService(s *store.Store, logger *slog.Logger) *BitService {
	return &BitService{store: s, logger: logger}
}

// Post attaches a bit to an entity the user owns or views.
func (s *BitService) Post(ctx context.Context, userID, entityID, text string, showAuthor bool) (*domain.Bit, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, domainerrors.Validation("bit text is required")
	case len([]rune(text)) > maxBitLength:
		return nil, domainerrors.Validationf("bit text must not exceed %d characters", maxBitLength)
	}
	if _, err := s.visibleEntity(ctx, userID, entityID); err != nil {
		return nil, err
	}

	bitID, err := id.Generate(id.PrefixBit)
	if err != nil {
		return nil, fmt.Errorf("generate bit id: %w", err)
	}
	bit := &domain.Bit{EntityID: entityID, Text: text, AuthorID: userID, ShowAuthor: showAuthor}
	bit.ID = bitID
	bit.InitTimestamps()

	if err := s.store.Bits.Create(ctx, bit); err != nil {
		return nil, fmt.Errorf("create bit: %w", err)
	}
	return bit, nil
}

// List returns an entity's bits, newest first. Authors who chose not to be
// shown are hidden from everyone but themselves.
func (s *BitService) List(ctx context.Context, userID, entityID string) ([]*domain.Bit, error) {
	if _, err := s.visibleEntity(ctx, userID, entityID); err != nil {
		return nil, err
	}
	bits, err := s.store.BitsFor(ctx, entityID, "")
	if err != nil {
		return nil, err
	}
	for i, b := range bits {
		if !b.ShowAuthor && b.AuthorID != userID {
			cp := *b
			cp.AuthorID = ""
			bits[i] = &cp
		}
	}
	slices.SortFunc(bits, func(a, b *domain.Bit) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return bits, nil
}

// Delete removes a bit. Only its author may delete it.
func (s *BitService) Delete(ctx context.Context, userID, entityID, bitID string) error {
	bit, err := s.store.Bits.Get(ctx, bitID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && bit.EntityID != entityID) {
		return domainerrors.NotFoundf("bit %s not found", bitID)
	}
	if err != nil {
		return err
	}
	if bit.AuthorID != userID {
		return domainerrors.Forbidden("only the author can delete a bit")
	}
	if err := s.store.Bits.Delete(ctx, bitID); err != nil {
		return fmt.Errorf("delete bit: %w", err)
	}

	s.logger.Info("bit deleted", "bit_id", bitID, "entity_id", entityID, "user_id", userID)
	return nil
}

func (s *BitService) visibleEntity(ctx context.Context, userID, entityID string) (*domain.Entity, error) {
	e, err := s.store.Entities.Get(ctx, entityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("entity %s not found", entityID)
	}
	if err != nil {
		return nil, err
	}
	if !e.CanView(userID) {
		return nil, domainerrors.Forbiddenf("no access to entity %s", entityID)
	}
	return e, nil
}
