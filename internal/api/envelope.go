package api

import (
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the shared envelope.
// Errors become {v, success:false, error, code, message, details}.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if env, ok := v.(response.Envelope); ok {
		return env, nil
	}

	if apiErr, ok := v.(*APIError); ok {
		code := apiErr.Code
		if code == "" {
			code = response.CodeForStatus(statusFromString(status))
		}
		return response.Envelope{
			V:       response.Version,
			Success: false,
			Error:   apiErr.Message,
			Code:    code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		}, nil
	}

	if model, ok := v.(*huma.ErrorModel); ok {
		return response.Envelope{
			V:       response.Version,
			Success: false,
			Error:   model.Detail,
			Code:    response.CodeForStatus(model.Status),
			Message: model.Detail,
		}, nil
	}

	if err, ok := v.(error); ok {
		return response.Envelope{
			V:       response.Version,
			Success: false,
			Error:   err.Error(),
			Code:    response.CodeForStatus(statusFromString(status)),
		}, nil
	}

	return response.Envelope{
		V:       response.Version,
		Success: true,
		Data:    v,
	}, nil
}

func statusFromString(status string) int {
	n, err := strconv.Atoi(status)
	if err != nil {
		return http.StatusInternalServerError
	}
	return n
}
