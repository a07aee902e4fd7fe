package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/service"
)

func (s *Server) registerShareRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createSharePack",
		Method:        http.MethodPost,
		Path:          "/api/v1/shares",
		Summary:       "Share entities",
		Description:   "Offers owned entities to another user. Nothing is visible until the recipient confirms.",
		Tags:          []string{"Sharing"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerSecurity,
	}, s.handleCreateSharePack)

	huma.Register(s.api, huma.Operation{
		OperationID: "listIncomingShares",
		Method:      http.MethodGet,
		Path:        "/api/v1/shares/incoming",
		Summary:     "List incoming shares",
		Description: "Returns share packs addressed to the caller",
		Tags:        []string{"Sharing"},
		Security:    bearerSecurity,
	}, s.handleListIncomingShares)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSentShares",
		Method:      http.MethodGet,
		Path:        "/api/v1/shares/sent",
		Summary:     "List sent shares",
		Description: "Returns share packs the caller sent",
		Tags:        []string{"Sharing"},
		Security:    bearerSecurity,
	}, s.handleListSentShares)

	huma.Register(s.api, huma.Operation{
		OperationID: "confirmSharePack",
		Method:      http.MethodPost,
		Path:        "/api/v1/shares/{id}/confirm",
		Summary:     "Confirm share",
		Description: "Accepts a share pack and grants view access to its entities. Recipient only.",
		Tags:        []string{"Sharing"},
		Security:    bearerSecurity,
	}, s.handleConfirmSharePack)

	huma.Register(s.api, huma.Operation{
		OperationID:   "declineSharePack",
		Method:        http.MethodDelete,
		Path:          "/api/v1/shares/{id}",
		Summary:       "Decline share",
		Description:   "Deletes a pending share pack. Recipient only.",
		Tags:          []string{"Sharing"},
		DefaultStatus: http.StatusNoContent,
		Security:      bearerSecurity,
	}, s.handleDeclineSharePack)
}

// === DTOs ===

// CreateSharePackInput wraps the share request for Huma.
type CreateSharePackInput struct {
	Authorization string `header:"Authorization"`
	Body          service.CreatePackInput
}

// SharePackOutput wraps a share pack for Huma.
type SharePackOutput struct {
	Body *domain.SharePack
}

// ListSharesInput contains parameters for listing shares.
type ListSharesInput struct {
	Authorization string `header:"Authorization"`
}

// SharePacksResponse contains a list of share packs.
type SharePacksResponse struct {
	Packs []*domain.SharePack `json:"packs" doc:"Share packs"`
}

// SharePacksOutput wraps a share pack list for Huma.
type SharePacksOutput struct {
	Body SharePacksResponse
}

// SharePackIDInput contains the share pack path parameter.
type SharePackIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Share pack ID"`
}

// === Handlers ===

func (s *Server) handleCreateSharePack(ctx context.Context, input *CreateSharePackInput) (*SharePackOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	pack, err := s.services.Sharing.CreatePack(ctx, userID, input.Body)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &SharePackOutput{Body: pack}, nil
}

func (s *Server) handleListIncomingShares(ctx context.Context, _ *ListSharesInput) (*SharePacksOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	packs, err := s.services.Sharing.ListIncoming(ctx, userID)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &SharePacksOutput{Body: SharePacksResponse{Packs: packs}}, nil
}

func (s *Server) handleListSentShares(ctx context.Context, _ *ListSharesInput) (*SharePacksOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	packs, err := s.services.Sharing.ListSent(ctx, userID)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &SharePacksOutput{Body: SharePacksResponse{Packs: packs}}, nil
}

func (s *Server) handleConfirmSharePack(ctx context.Context, input *SharePackIDInput) (*SharePackOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	pack, err := s.services.Sharing.Confirm(ctx, userID, input.ID)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &SharePackOutput{Body: pack}, nil
}

func (s *Server) handleDeclineSharePack(ctx context.Context, input *SharePackIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Sharing.Decline(ctx, userID, input.ID); err != nil {
		return nil, s.handlerError(err)
	}
	return nil, nil
}
