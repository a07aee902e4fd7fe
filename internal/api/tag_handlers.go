package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/domain"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{category}",
		Summary:     "List tags",
		Description: "Returns the tags of one category, most used first",
		Tags:        []string{"Tags"},
		Security:    bearerSecurity,
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "ensureTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/{category}",
		Summary:     "Ensure tags",
		Description: "Resolves names to tags in one category, creating the missing ones",
		Tags:        []string{"Tags"},
		Security:    bearerSecurity,
	}, s.handleEnsureTags)
}

// === DTOs ===

// TagCategoryInput contains the category path parameter.
type TagCategoryInput struct {
	Authorization string `header:"Authorization"`
	Category      string `path:"category" enum:"from,relationship,character,field" doc:"Tag category"`
}

// EnsureTagsRequest is the request body for ensuring tags.
type EnsureTagsRequest struct {
	Names []string `json:"names" minItems:"1" maxItems:"100" doc:"Tag display names"`
}

// EnsureTagsInput wraps the ensure tags request for Huma.
type EnsureTagsInput struct {
	Authorization string `header:"Authorization"`
	Category      string `path:"category" enum:"from,relationship,character,field" doc:"Tag category"`
	Body          EnsureTagsRequest
}

// TagsResponse contains a list of tags.
type TagsResponse struct {
	Tags []*domain.Tag `json:"tags" doc:"Tags"`
}

// TagsOutput wraps a tag list for Huma.
type TagsOutput struct {
	Body TagsResponse
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, input *TagCategoryInput) (*TagsOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	tags, err := s.services.Tag.List(ctx, domain.TagCategory(input.Category))
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &TagsOutput{Body: TagsResponse{Tags: tags}}, nil
}

func (s *Server) handleEnsureTags(ctx context.Context, input *EnsureTagsInput) (*TagsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	tags, err := s.services.Tag.Ensure(ctx, userID, domain.TagCategory(input.Category), input.Body.Names)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &TagsOutput{Body: TagsResponse{Tags: tags}}, nil
}
