package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/id"
	"github.com/orbitapp/orbit-server/internal/store"
)

// CreatePackInput is the body of a share request.
type CreatePackInput struct {
	RecipientID string   `json:"recipient_id" validate:"required"`
	EntityIDs   []string `json:"entity_ids" validate:"required,min=1,max=500,dive,required"`
}

// SharingService sends entities between users as share packs.
// A pack grants nothing until the recipient confirms it.
type SharingService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSharingService creates a new sharing service.
func NewSharingService(s *store.Store, logger *slog.Logger) *SharingService {
	return &SharingService{
		store:  s,
		logger: logger,
	}
}

// CreatePack sends entities the sender owns to a recipient.
func (s *SharingService) CreatePack(ctx context.Context, senderID string, in CreatePackInput) (*domain.SharePack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := dedupe(in.EntityIDs)
	switch {
	case in.RecipientID == "":
		return nil, domainerrors.Validation("recipient is required")
	case in.RecipientID == senderID:
		return nil, domainerrors.Validation("cannot share with yourself")
	case len(ids) == 0:
		return nil, domainerrors.Validation("a share pack needs at least one entity")
	}

	found, err := s.store.Entities.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	if len(found) != len(ids) {
		return nil, domainerrors.NotFound("one or more entities not found")
	}
	for _, e := range found {
		if !e.IsOwnedBy(senderID) {
			return nil, domainerrors.Forbiddenf("only the owner can share entity %s", e.ID)
		}
	}

	packID, err := id.Generate(id.PrefixSharePack)
	if err != nil {
		return nil, fmt.Errorf("generate pack id: %w", err)
	}
	pack := &domain.SharePack{
		SenderID:    senderID,
		RecipientID: in.RecipientID,
		EntityIDs:   ids,
	}
	pack.ID = packID
	pack.InitTimestamps()

	if err := s.store.SharePacks.Create(ctx, pack); err != nil {
		return nil, fmt.Errorf("create share pack: %w", err)
	}

	s.logger.Info("share pack created",
		"pack_id", pack.ID,
		"sender_id", senderID,
		"recipient_id", in.RecipientID,
		"entities", len(ids),
	)
	return pack, nil
}

// ListIncoming returns the packs waiting for the user's confirmation.
func (s *SharingService) ListIncoming(ctx context.Context, userID string) ([]*domain.SharePack, error) {
	packs, err := s.store.SharePacksFor(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(packs, func(p *domain.SharePack) bool { return p.Confirmed }), nil
}

// ListSent returns every pack the user has sent.
func (s *SharingService) ListSent(ctx context.Context, userID string) ([]*domain.SharePack, error) {
	return s.store.SharePacksFor(ctx, userID, false)
}

// Confirm accepts a pack: the recipient becomes a viewer of every entity in
// it, in one batch. Confirming an already confirmed pack changes nothing.
func (s *SharingService) Confirm(ctx context.Context, userID, packID string) (*domain.SharePack, error) {
	pack, err := s.recipientPack(ctx, userID, packID)
	if err != nil {
		return nil, err
	}
	if pack.Confirmed {
		return pack, nil
	}

	confirmed := *pack
	confirmed.Confirmed = true
	confirmed.Touch()

	b := s.store.NewBatch()
	for _, entityID := range pack.EntityIDs {
		b.AddViewer(entityID, userID)
	}
	b.SetSharePack(&confirmed)
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("confirm share pack: %w", err)
	}

	s.logger.Info("share pack confirmed",
		"pack_id", packID,
		"recipient_id", userID,
		"entities", len(pack.EntityIDs),
	)
	return &confirmed, nil
}

// Decline deletes a pending pack addressed to the user.
func (s *SharingService) Decline(ctx context.Context, userID, packID string) error {
	pack, err := s.recipientPack(ctx, userID, packID)
	if err != nil {
		return err
	}
	if pack.Confirmed {
		return domainerrors.Conflict("share pack already confirmed")
	}
	if err := s.store.SharePacks.Delete(ctx, packID); err != nil {
		return fmt.Errorf("delete share pack: %w", err)
	}

	s.logger.Info("share pack declined", "pack_id", packID, "recipient_id", userID)
	return nil
}

func (s *SharingService) recipientPack(ctx context.Context, userID, packID string) (*domain.SharePack, error) {
	pack, err := s.store.SharePacks.Get(ctx, packID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("share pack %s not found", packID)
	}
	if err != nil {
		return nil, fmt.Errorf("get share pack: %w", err)
	}
	if pack.RecipientID != userID {
		return nil, domainerrors.Forbidden("only the recipient can answer a share pack")
	}
	return pack, nil
}
