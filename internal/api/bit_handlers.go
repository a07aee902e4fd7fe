package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/domain"
)

func (s *Server) registerBitRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "postBit",
		Method:        http.MethodPost,
		Path:          "/api/v1/entities/{id}/bits",
		Summary:       "Post bit",
		Description:   "Attaches a short note to a visible entity",
		Tags:          []string{"Bits"},
		DefaultStatus: http.StatusCreated,
		Security:      bearerSecurity,
	}, s.handlePostBit)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBits",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{id}/bits",
		Summary:     "List bits",
		Description: "Returns the bits on an entity, newest first. Hidden authors are blanked.",
		Tags:        []string{"Bits"},
		Security:    bearerSecurity,
	}, s.handleListBits)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBit",
		Method:        http.MethodDelete,
		Path:          "/api/v1/entities/{id}/bits/{bitID}",
		Summary:       "Delete bit",
		Description:   "Deletes a bit. Author only.",
		Tags:          []string{"Bits"},
		DefaultStatus: http.StatusNoContent,
		Security:      bearerSecurity,
	}, s.handleDeleteBit)
}

// === DTOs ===

// PostBitRequest is the request body for posting a bit.
type PostBitRequest struct {
	Text       string `json:"text" minLength:"1" doc:"Note text, at most 2000 characters"`
	ShowAuthor bool   `json:"show_author,omitzero" doc:"Reveal the author to other viewers"`
}

// PostBitInput wraps the post bit request for Huma.
type PostBitInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Entity ID"`
	Body          PostBitRequest
}

// BitOutput wraps a bit for Huma.
type BitOutput struct {
	Body *domain.Bit
}

// BitsResponse contains a list of bits.
type BitsResponse struct {
	Bits []*domain.Bit `json:"bits" doc:"Bits, newest first"`
}

// BitsOutput wraps a bit list for Huma.
type BitsOutput struct {
	Body BitsResponse
}

// BitIDInput contains the bit path parameters.
type BitIDInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Entity ID"`
	BitID         string `path:"bitID" doc:"Bit ID"`
}

// === Handlers ===

func (s *Server) handlePostBit(ctx context.Context, input *PostBitInput) (*BitOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	bit, err := s.services.Bit.Post(ctx, userID, input.ID, input.Body.Text, input.Body.ShowAuthor)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &BitOutput{Body: bit}, nil
}

func (s *Server) handleListBits(ctx context.Context, input *EntityIDInput) (*BitsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	bits, err := s.services.Bit.List(ctx, userID, input.ID)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &BitsOutput{Body: BitsResponse{Bits: bits}}, nil
}

func (s *Server) handleDeleteBit(ctx context.Context, input *BitIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Bit.Delete(ctx, userID, input.ID, input.BitID); err != nil {
		return nil, s.handlerError(err)
	}
	return nil, nil
}
