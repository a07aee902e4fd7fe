package service

import (
	"context"
	"log/slog"

	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

// TagService exposes the tag registries.
// Tags are shared by every user; anyone may create one by using it.
type TagService struct {
	store  *store.Store
	tags   *tagging.Registry
	logger *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(s *store.Store, tags *tagging.Registry, logger *slog.Logger) *TagService {
	return &TagService{
		store:  s,
		tags:   tags,
		logger: logger,
	}
}

// List returns a category's tags, most used first.
func (s *TagService) List(ctx context.Context, category domain.TagCategory) ([]*domain.Tag, error) {
	if !category.Valid() {
		return nil, domainerrors.Validationf("unknown tag category %q", category)
	}
	return s.store.ListTags(ctx, category)
}

// Ensure resolves names to tags, creating the missing ones.
func (s *TagService) Ensure(ctx context.Context, userID string, category domain.TagCategory, names []string) ([]*domain.Tag, error) {
	if !category.Valid() {
		return nil, domainerrors.Validationf("unknown tag category %q", category)
	}
	return s.tags.Ensure(ctx, userID, category, names)
}

// Reconcile recounts tag usage from a full scan and repairs drift.
func (s *TagService) Reconcile(ctx context.Context, requestedBy string) (*tagging.ReconcileReport, error) {
	s.logger.Info("tag reconciliation requested", "user_id", requestedBy)
	return s.tags.Reconcile(ctx)
}
