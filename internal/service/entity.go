// Package service provides the business logic layer over the entity graph.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/orbitapp/orbit-server/internal/cascade"
	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/id"
	"github.com/orbitapp/orbit-server/internal/normalize"
	"github.com/orbitapp/orbit-server/internal/sse"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
	"github.com/orbitapp/orbit-server/internal/validation"
)

// EntityInput is the full editable state of an entity. Tags hold display
// names; they are resolved to tag ids, creating tags as needed.
type EntityInput struct {
	Type              domain.EntityType               `json:"type,omitempty" validate:"omitempty,entity_type"`
	Name              string                          `json:"name" validate:"required,max=200"`
	Info              string                          `json:"info,omitempty" validate:"max=5000"`
	PhotoURL          string                          `json:"photo_url,omitempty" validate:"omitempty,url"`
	Tags              map[domain.TagCategory][]string `json:"tags,omitempty" validate:"dive,keys,tag_category,endkeys"`
	Relations         []string                        `json:"relations,omitempty"`
	Contact           domain.Contact                  `json:"contact,omitzero"`
	Addresses         []domain.Address                `json:"addresses,omitempty"`
	Dates             []domain.DateEntry              `json:"dates,omitempty"`
	CatchupTargetDays int                             `json:"catchup_target_days,omitzero" validate:"gte=0"`
}

// EntityPatch updates the fields that are set.
type EntityPatch struct {
	Type              *domain.EntityType              `json:"type,omitempty" validate:"omitempty,entity_type"`
	Name              *string                         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Info              *string                         `json:"info,omitempty" validate:"omitempty,max=5000"`
	PhotoURL          *string                         `json:"photo_url,omitempty"`
	Tags              map[domain.TagCategory][]string `json:"tags,omitempty" validate:"dive,keys,tag_category,endkeys"`
	Contact           *domain.Contact                 `json:"contact,omitempty"`
	Addresses         []domain.Address                `json:"addresses,omitempty"`
	Dates             []domain.DateEntry              `json:"dates,omitempty"`
	CatchupTargetDays *int                            `json:"catchup_target_days,omitempty" validate:"omitempty,gte=0"`
}

// EntityService orchestrates entity writes so tag counts and references stay consistent.
type EntityService struct {
	store      *store.Store
	tags       *tagging.Registry
	deleter    *cascade.Deleter
	sseManager *sse.Manager
	validator  *validation.Validator
	logger     *slog.Logger
}

// NewEntityService creates a new entity service.
func NewEntityService(s *store.Store, tags *tagging.Registry, deleter *cascade.Deleter, sseManager *sse.Manager, logger *slog.Logger) *EntityService {
	return &EntityService{
		store:      s,
		tags:       tags,
		deleter:    deleter,
		sseManager: sseManager,
		validator:  validation.New(),
		logger:     logger,
	}
}

// Create stores a new entity owned by userID and counts its tags.
func (s *EntityService) Create(ctx context.Context, userID string, in EntityInput) (*domain.Entity, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	contact, err := normalizeContact(in.Contact)
	if err != nil {
		return nil, err
	}

	entityID, err := id.Generate(id.PrefixEntity)
	if err != nil {
		return nil, fmt.Errorf("generate entity id: %w", err)
	}
	if err := s.checkRelations(ctx, userID, entityID, in.Relations); err != nil {
		return nil, err
	}
	refs, err := s.resolveTags(ctx, userID, in.Tags)
	if err != nil {
		return nil, err
	}

	e := &domain.Entity{
		Type:              domain.ParseEntityType(string(in.Type)),
		Name:              strings.TrimSpace(in.Name),
		Info:              in.Info,
		PhotoURL:          in.PhotoURL,
		OwnerID:           userID,
		Tags:              refs,
		Relations:         dedupe(in.Relations),
		Contact:           contact,
		Addresses:         in.Addresses,
		Dates:             in.Dates,
		CatchupTargetDays: in.CatchupTargetDays,
	}
	e.ID = entityID
	e.InitTimestamps()

	b := s.store.NewBatch().CreateEntity(e)
	s.tags.QueueRefs(b, nil, refs)
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create entity: %w", err)
	}

	s.logger.Info("entity created",
		"entity_id", e.ID,
		"user_id", userID,
		"type", e.Type,
	)
	return e, nil
}

// Get returns an entity the user owns or has been granted view access to.
func (s *EntityService) Get(ctx context.Context, userID, entityID string) (*domain.Entity, error) {
	e, err := s.load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !e.CanView(userID) {
		return nil, domainerrors.Forbiddenf("no access to entity %s", entityID)
	}
	return e, nil
}

// Update applies patch to an entity the user owns. Tag changes and the
// entity write commit together.
func (s *EntityService) Update(ctx context.Context, userID, entityID string, patch EntityPatch) (*domain.Entity, error) {
	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}

	prev, err := s.loadOwned(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}
	next := *prev

	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Info != nil {
		next.Info = *patch.Info
	}
	if patch.PhotoURL != nil {
		next.PhotoURL = *patch.PhotoURL
	}
	if patch.Contact != nil {
		if next.Contact, err = normalizeContact(*patch.Contact); err != nil {
			return nil, err
		}
	}
	if patch.Addresses != nil {
		next.Addresses = patch.Addresses
	}
	if patch.Dates != nil {
		next.Dates = patch.Dates
	}
	if patch.CatchupTargetDays != nil {
		next.CatchupTargetDays = *patch.CatchupTargetDays
	}
	if patch.Tags != nil {
		next.Tags = prev.Tags.Clone()
		if next.Tags == nil {
			next.Tags = domain.TagRefs{}
		}
		for c, names := range patch.Tags {
			ids, err := s.tags.EnsureIDs(ctx, userID, c, names)
			if err != nil {
				return nil, fmt.Errorf("resolve %s tags: %w", c, err)
			}
			next.Tags.Set(c, ids)
		}
	}
	next.Touch()

	b := s.store.NewBatch().SetEntity(&next)
	s.tags.QueueRefs(b, prev.Tags, next.Tags)
	if err := b.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update entity: %w", err)
	}

	s.logger.Info("entity updated", "entity_id", entityID, "user_id", userID)
	return &next, nil
}

// SetTags replaces one category of an entity's tags with the named tags.
func (s *EntityService) SetTags(ctx context.Context, userID, entityID string, category domain.TagCategory, names []string) (*domain.Entity, error) {
	if !category.Valid() {
		return nil, domainerrors.Validationf("unknown tag category %q", category)
	}
	prev, err := s.loadOwned(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}
	ids, err := s.tags.EnsureIDs(ctx, userID, category, names)
	if err != nil {
		return nil, fmt.Errorf("resolve %s tags: %w", category, err)
	}

	next := *prev
	next.Tags = prev.Tags.Clone()
	if next.Tags == nil {
		next.Tags = domain.TagRefs{}
	}
	next.Tags.Set(category, ids)
	next.Touch()

	b := s.store.NewBatch().SetEntity(&next)
	d, err := s.tags.ApplyTagDelta(ctx, b, entityID, category, prev.Tags.Get(category), ids)
	if err != nil {
		return nil, fmt.Errorf("set tags: %w", err)
	}

	s.logger.Info("entity tags set",
		"entity_id", entityID,
		"category", category,
		"added", len(d.Added),
		"removed", len(d.Removed),
	)
	return &next, nil
}

// SetRelations replaces the entity's relations. Targets must be visible to the user.
func (s *EntityService) SetRelations(ctx context.Context, userID, entityID string, targets []string) (*domain.Entity, error) {
	prev, err := s.loadOwned(ctx, userID, entityID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRelations(ctx, userID, entityID, targets); err != nil {
		return nil, err
	}

	next := *prev
	next.Relations = dedupe(targets)
	next.Touch()
	if err := s.store.NewBatch().SetEntity(&next).Commit(ctx); err != nil {
		return nil, fmt.Errorf("set relations: %w", err)
	}
	return &next, nil
}

// Delete runs a cascading delete over ids and reports aggregate outcomes.
// Entities the user does not own are skipped, never an error.
func (s *EntityService) Delete(ctx context.Context, userID string, ids []string) (*cascade.Result, error) {
	if len(ids) == 0 {
		return &cascade.Result{}, nil
	}
	res, err := s.deleter.DeleteEntities(ctx, userID, dedupe(ids))
	if res != nil && s.sseManager != nil {
		s.sseManager.EmitToUser(userID, sse.NewEvent(sse.EventDeleteCompleted, userID, res))
	}
	return res, err
}

func (s *EntityService) load(ctx context.Context, entityID string) (*domain.Entity, error) {
	e, err := s.store.Entities.Get(ctx, entityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("entity %s not found", entityID)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (s *EntityService) loadOwned(ctx context.Context, userID, entityID string) (*domain.Entity, error) {
	e, err := s.load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !e.IsOwnedBy(userID) {
		return nil, domainerrors.Forbiddenf("only the owner can modify entity %s", entityID)
	}
	return e, nil
}

// checkRelations verifies every target exists, is visible to userID and is not the entity itself.
func (s *EntityService) checkRelations(ctx context.Context, userID, entityID string, targets []string) error {
	if len(targets) == 0 {
		return nil
	}
	if slices.Contains(targets, entityID) {
		return domainerrors.Validation("an entity cannot relate to itself")
	}
	found, err := s.store.Entities.GetMany(ctx, dedupe(targets))
	if err != nil {
		return fmt.Errorf("load relation targets: %w", err)
	}
	visible := make(map[string]bool, len(found))
	for _, t := range found {
		visible[t.ID] = t.CanView(userID)
	}
	for _, t := range targets {
		if !visible[t] {
			return domainerrors.Validationf("relation target %s not found", t)
		}
	}
	return nil
}

func (s *EntityService) resolveTags(ctx context.Context, userID string, names map[domain.TagCategory][]string) (domain.TagRefs, error) {
	refs := domain.TagRefs{}
	for _, c := range domain.TagCategories {
		if len(names[c]) == 0 {
			continue
		}
		ids, err := s.tags.EnsureIDs(ctx, userID, c, names[c])
		if err != nil {
			return nil, fmt.Errorf("resolve %s tags: %w", c, err)
		}
		refs.Set(c, ids)
	}
	return refs, nil
}

// normalizeContact rewrites phone numbers to E.164 and Instagram handles to URLs.
func normalizeContact(c domain.Contact) (domain.Contact, error) {
	out := c
	out.Phones = make([]domain.Phone, 0, len(c.Phones))
	for _, p := range c.Phones {
		e164, ok := normalize.PhoneE164(p.E164)
		if !ok {
			return c, domainerrors.Validationf("invalid phone number %q", p.E164)
		}
		out.Phones = append(out.Phones, domain.Phone{E164: e164, Label: p.Label})
	}
	out.Instagram = make([]domain.Link, 0, len(c.Instagram))
	for _, l := range c.Instagram {
		if url := normalize.InstagramURL(l.URL); url != "" {
			out.Instagram = append(out.Instagram, domain.Link{Header: l.Header, URL: url})
		}
	}
	if len(out.Phones) == 0 {
		out.Phones = nil
	}
	if len(out.Instagram) == 0 {
		out.Instagram = nil
	}
	return out, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
