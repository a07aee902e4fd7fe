package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/cascade"
	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/listing"
	"github.com/orbitapp/orbit-server/internal/service"
)

func (s *Server) registerEntityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listEntities",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities",
		Summary:     "List entities",
		Description: "Returns one page of entities visible to the caller, newest first. A search term returns every match at once.",
		Tags:        []string{"Entities"},
		Security:    bearerSecurity,
	}, s.handleListEntities)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createEntity",
		Method:        http.MethodPost,
		Path:          "/api/v1/entities",
		Summary:       "Create entity",
		Description:   "Creates an entity owned by the caller. Tag names are created as needed.",
		Tags:          []string{"Entities"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerSecurity,
	}, s.handleCreateEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "getEntity",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{id}",
		Summary:     "Get entity",
		Description: "Returns an entity the caller owns or was shared",
		Tags:        []string{"Entities"},
		Security:    bearerSecurity,
	}, s.handleGetEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateEntity",
		Method:      http.MethodPatch,
		Path:        "/api/v1/entities/{id}",
		Summary:     "Update entity",
		Description: "Updates the fields that are set. Owner only.",
		Tags:        []string{"Entities"},
		Security:    bearerSecurity,
	}, s.handleUpdateEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteEntity",
		Method:      http.MethodDelete,
		Path:        "/api/v1/entities/{id}",
		Summary:     "Delete entity",
		Description: "Deletes an entity and everything that references it",
		Tags:        []string{"Entities"},
		Security:    bearerSecurity,
	}, s.handleDeleteEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteEntities",
		Method:      http.MethodPost,
		Path:        "/api/v1/entities/delete",
		Summary:     "Delete entities",
		Description: "Deletes several entities. Entities the caller does not own are skipped and counted.",
		Tags:        []string{"Entities"},
		Security:    bearerSecurity,
	}, s.handleDeleteEntities)

	huma.Register(s.api, huma.Operation{
		OperationID: "setEntityTags",
		Method:      http.MethodPut,
		Path:        "/api/v1/entities/{id}/tags/{category}",
		Summary:     "Set entity tags",
		Description: "Replaces the tags of one category. Usage counts move by the difference.",
		Tags:        []string{"Entities"},
		Security:    bearerSecurity,
	}, s.handleSetEntityTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "setEntityRelations",
		Method:      http.MethodPut,
		Path:        "/api/v1/entities/{id}/relations",
		Summary:     "Set entity relations",
		Description: "Replaces the related entities. Targets must be visible to the caller (owned or shared with them).",
		Tags:        []string{"Entities"},
		Security:    bearerSecurity,
	}, s.handleSetEntityRelations)
}

// === DTOs ===

// ListEntitiesInput contains parameters for listing entities.
type ListEntitiesInput struct {
	Authorization string `header:"Authorization"`
	ListingQuery
}

// ListEntitiesOutput wraps one listing page for Huma.
type ListEntitiesOutput struct {
	Body *listing.Result
}

// CreateEntityInput wraps the create entity request for Huma.
type CreateEntityInput struct {
	Authorization string `header:"Authorization"`
	Body          service.EntityInput
}

// EntityOutput wraps an entity for Huma.
type EntityOutput struct {
	Body *domain.Entity
}

// EntityIDInput contains the entity path parameter.
type EntityIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Entity ID"`
}

// UpdateEntityInput wraps the update entity request for Huma.
type UpdateEntityInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Entity ID"`
	Body          service.EntityPatch
}

// DeleteResultOutput wraps a cascade delete outcome for Huma.
type DeleteResultOutput struct {
	Body *cascade.Result
}

// DeleteEntitiesRequest is the request body for a bulk delete.
type DeleteEntitiesRequest struct {
	IDs []string `json:"ids" minItems:"1" maxItems:"500" doc:"Entity IDs to delete"`
}

// DeleteEntitiesInput wraps the bulk delete request for Huma.
type DeleteEntitiesInput struct {
	Authorization string `header:"Authorization"`
	Body          DeleteEntitiesRequest
}

// SetTagsRequest is the request body for replacing one tag category.
type SetTagsRequest struct {
	Names []string `json:"names" maxItems:"100" doc:"Tag display names; empty clears the category"`
}

// SetTagsInput wraps the set tags request for Huma.
type SetTagsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Entity ID"`
	Category      string `path:"category" enum:"from,relationship,character,field" doc:"Tag category"`
	Body          SetTagsRequest
}

// SetRelationsRequest is the request body for replacing relations.
type SetRelationsRequest struct {
	Targets []string `json:"targets" maxItems:"500" doc:"Related entity IDs"`
}

// SetRelationsInput wraps the set relations request for Huma.
type SetRelationsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Entity ID"`
	Body          SetRelationsRequest
}

// === Handlers ===

func (s *Server) handleListEntities(ctx context.Context, input *ListEntitiesInput) (*ListEntitiesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	req, err := input.ListingQuery.Request()
	if err != nil {
		return nil, s.handlerError(err)
	}

	res, err := s.services.Listing.List(ctx, userID, req)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &ListEntitiesOutput{Body: res}, nil
}

func (s *Server) handleCreateEntity(ctx context.Context, input *CreateEntityInput) (*EntityOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.services.Entity.Create(ctx, userID, input.Body)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &EntityOutput{Body: e}, nil
}

func (s *Server) handleGetEntity(ctx context.Context, input *EntityIDInput) (*EntityOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.services.Entity.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &EntityOutput{Body: e}, nil
}

func (s *Server) handleUpdateEntity(ctx context.Context, input *UpdateEntityInput) (*EntityOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.services.Entity.Update(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &EntityOutput{Body: e}, nil
}

func (s *Server) handleDeleteEntity(ctx context.Context, input *EntityIDInput) (*DeleteResultOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Entity.Delete(ctx, userID, []string{input.ID})
	if err != nil {
		return nil, s.handlerError(err)
	}
	// A single delete that skipped its only id was not the caller's to delete.
	if res.SkippedNotOwner == 1 {
		return nil, domainerrors.Forbidden("only the owner can delete an entity")
	}
	return &DeleteResultOutput{Body: res}, nil
}

func (s *Server) handleDeleteEntities(ctx context.Context, input *DeleteEntitiesInput) (*DeleteResultOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if len(input.Body.IDs) > maxBulkDelete {
		return nil, domainerrors.Validationf("at most %d entities per request", maxBulkDelete)
	}

	res, err := s.services.Entity.Delete(ctx, userID, input.Body.IDs)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &DeleteResultOutput{Body: res}, nil
}

func (s *Server) handleSetEntityTags(ctx context.Context, input *SetTagsInput) (*EntityOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	category, ok := domain.ParseTagCategory(input.Category)
	if !ok {
		return nil, domainerrors.Validationf("unknown tag category %q", input.Category)
	}

	e, err := s.services.Entity.SetTags(ctx, userID, input.ID, category, input.Body.Names)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &EntityOutput{Body: e}, nil
}

func (s *Server) handleSetEntityRelations(ctx context.Context, input *SetRelationsInput) (*EntityOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.services.Entity.SetRelations(ctx, userID, input.ID, input.Body.Targets)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &EntityOutput{Body: e}, nil
}
