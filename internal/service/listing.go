package service

import (
	"context"
	"errors"
	"log/slog"

	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/listing"
	"github.com/orbitapp/orbit-server/internal/store"
)

// ListingService answers entity listings, one-shot or live.
type ListingService struct {
	engine *listing.Engine
	hub    *listing.Hub
	logger *slog.Logger
}

// NewListingService creates a new listing service.
func NewListingService(engine *listing.Engine, hub *listing.Hub, logger *slog.Logger) *ListingService {
	return &ListingService{engine: engine, hub: hub, logger: logger}
}

// List returns one page. A term switches to search, a cursor continues a listing.
func (s *ListingService) List(ctx context.Context, userID string, req listing.Request) (*listing.Result, error) {
	res, err := s.engine.List(ctx, userID, req)
	if err != nil {
		return nil, mapListingError(err)
	}
	if len(res.Degraded) > 0 {
		s.logger.Warn("listing degraded", "user_id", userID, "streams", res.Degraded)
	}
	return res, nil
}

// Search returns every visible entity matching the term.
func (s *ListingService) Search(ctx context.Context, userID string, req listing.Request) (*listing.Result, error) {
	res, err := s.engine.Search(ctx, userID, req)
	if err != nil {
		return nil, mapListingError(err)
	}
	return res, nil
}

// Subscribe opens a live listing that follows store changes.
func (s *ListingService) Subscribe(ctx context.Context, userID string, req listing.Request) (*listing.Subscription, error) {
	sub, err := s.hub.Subscribe(ctx, userID, req)
	if err != nil {
		return nil, mapListingError(err)
	}
	return sub, nil
}

func mapListingError(err error) error {
	switch {
	case errors.Is(err, listing.ErrSearchNotLive):
		return domainerrors.Validation("search results cannot be streamed; use the listing endpoint")
	case errors.Is(err, store.ErrInvalidInput):
		return domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid listing request")
	default:
		return err
	}
}
