package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/id"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/validation"
)

// InteractionInput describes a new interaction.
type InteractionInput struct {
	Type          string    `json:"type" validate:"required,max=50"`
	Date          time.Time `json:"date" validate:"required"`
	EntityRefs    []string  `json:"entity_refs" validate:"required,min=1,dive,required"`
	Location      string    `json:"location,omitempty" validate:"max=500"`
	Notes         string    `json:"notes,omitempty" validate:"max=10000"`
	CatchupDone   bool      `json:"catchup_done,omitzero"`
	InteractorUID string    `json:"interactor_uid,omitempty"`
}

// InteractionService records touchpoints with entities.
type InteractionService struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewInteractionService creates a new interaction service.
func NewInteractionService(s *store.Store, logger *slog.Logger) *InteractionService {
	return &InteractionService{
		store:     s,
		validator: validation.New(),
		logger:    logger,
	}
}

// Create records an interaction. Every referenced entity must be visible to the user.
func (s *InteractionService) Create(ctx context.Context, userID string, in InteractionInput) (*domain.Interaction, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	refs := dedupe(in.EntityRefs)

	found, err := s.store.Entities.GetMany(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	visible := make(map[string]bool, len(found))
	for _, e := range found {
		visible[e.ID] = e.CanView(userID)
	}
	for _, ref := range refs {
		if !visible[ref] {
			return nil, domainerrors.Forbiddenf("no access to entity %s", ref)
		}
	}

	interactionID, err := id.Generate(id.PrefixInteraction)
	if err != nil {
		return nil, fmt.Errorf("generate interaction id: %w", err)
	}
	i := &domain.Interaction{
		Type:          strings.TrimSpace(in.Type),
		Date:          in.Date,
		EntityRefs:    refs,
		Location:      in.Location,
		Notes:         in.Notes,
		CatchupDone:   in.CatchupDone,
		OwnerID:       userID,
		InteractorUID: in.InteractorUID,
	}
	i.ID = interactionID
	i.InitTimestamps()

	if err := s.store.Interactions.Create(ctx, i); err != nil {
		return nil, fmt.Errorf("create interaction: %w", err)
	}

	s.logger.Info("interaction created",
		"interaction_id", i.ID,
		"user_id", userID,
		"entities", len(refs),
	)
	return i, nil
}

// ListForEntity returns the user's interactions that reference an entity, newest first.
func (s *InteractionService) ListForEntity(ctx context.Context, userID, entityID string) ([]*domain.Interaction, error) {
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

	found, err := s.store.InteractionsReferencing(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(found, func(a, b *domain.Interaction) int {
		return b.Date.Compare(a.Date)
	})
	return found, nil
}

// Delete removes an interaction the user owns.
func (s *InteractionService) Delete(ctx context.Context, userID, interactionID string) error {
	i, err := s.store.Interactions.Get(ctx, interactionID)
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf("interaction %s not found", interactionID)
	}
	if err != nil {
		return err
	}
	if i.OwnerID != userID {
		return domainerrors.Forbidden("only the owner can delete an interaction")
	}
	if err := s.store.Interactions.Delete(ctx, interactionID); err != nil {
		return fmt.Errorf("delete interaction: %w", err)
	}

	s.logger.Info("interaction deleted", "interaction_id", interactionID, "user_id", userID)
	return nil
}
