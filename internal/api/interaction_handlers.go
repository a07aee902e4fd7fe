package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/service"
)

func (s *Server) registerInteractionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createInteraction",
		Method:        http.MethodPost,
		Path:          "/api/v1/interactions",
		Summary:       "Record interaction",
		Description:   "Records a meeting involving one or more visible entities",
		Tags:          []string{"Interactions"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerSecurity,
	}, s.handleCreateInteraction)

	huma.Register(s.api, huma.Operation{
		OperationID: "listEntityInteractions",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{id}/interactions",
		Summary:     "List interactions",
		Description: "Returns the caller's interactions that reference an entity, newest first",
		Tags:        []string{"Interactions"},
		Security:    bearerSecurity,
	}, s.handleListEntityInteractions)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteInteraction",
		Method:        http.MethodDelete,
		Path:          "/api/v1/interactions/{id}",
		Summary:       "Delete interaction",
		Description:   "Deletes an interaction. Owner only.",
		Tags:          []string{"Interactions"},
		DefaultStatus: http.StatusNoContent,
		Security:      bearerSecurity,
	}, s.handleDeleteInteraction)
}

// === DTOs ===

// InteractionRequest is the request body for recording an interaction.
// Date accepts RFC3339 or epoch milliseconds.
type InteractionRequest struct {
	Type          string   `json:"type" minLength:"1" maxLength:"50" doc:"Kind of interaction, e.g. coffee or call"`
	Date          FlexTime `json:"date" doc:"When it happened"`
	EntityRefs    []string `json:"entity_refs" minItems:"1" doc:"Entities involved"`
	Location      string   `json:"location,omitempty" maxLength:"500"`
	Notes         string   `json:"notes,omitempty" maxLength:"10000"`
	CatchupDone   bool     `json:"catchup_done,omitzero" doc:"Counts as a catch-up"`
	InteractorUID string   `json:"interactor_uid,omitempty" doc:"User who took part, if not the caller"`
}

// ToInput converts the request to the service input.
func (r InteractionRequest) ToInput() service.InteractionInput {
	return service.InteractionInput{
		Type:          r.Type,
		Date:          r.Date.ToTime(),
		EntityRefs:    r.EntityRefs,
		Location:      r.Location,
		Notes:         r.Notes,
		CatchupDone:   r.CatchupDone,
		InteractorUID: r.InteractorUID,
	}
}

// CreateInteractionInput wraps the interaction request for Huma.
type CreateInteractionInput struct {
	Authorization string `header:"Authorization"`
	Body          InteractionRequest
}

// InteractionOutput wraps an interaction for Huma.
type InteractionOutput struct {
	Body *domain.Interaction
}

// InteractionsResponse contains a list of interactions.
type InteractionsResponse struct {
	Interactions []*domain.Interaction `json:"interactions" doc:"Interactions, newest first"`
}

// InteractionsOutput wraps an interaction list for Huma.
type InteractionsOutput struct {
	Body InteractionsResponse
}

// InteractionIDInput contains the interaction path parameter.
type InteractionIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Interaction ID"`
}

// === Handlers ===

func (s *Server) handleCreateInteraction(ctx context.Context, input *CreateInteractionInput) (*InteractionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	in, err := s.services.Interaction.Create(ctx, userID, input.Body.ToInput())
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &InteractionOutput{Body: in}, nil
}

func (s *Server) handleListEntityInteractions(ctx context.Context, input *EntityIDInput) (*InteractionsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Interaction.ListForEntity(ctx, userID, input.ID)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &InteractionsOutput{Body: InteractionsResponse{Interactions: list}}, nil
}

func (s *Server) handleDeleteInteraction(ctx context.Context, input *InteractionIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Interaction.Delete(ctx, userID, input.ID); err != nil {
		return nil, s.handlerError(err)
	}
	return nil, nil
}
