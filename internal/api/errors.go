package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/http/response"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			if p, ok := response.Classify(err); ok {
				return &APIError{status: p.Status, Code: p.Code, Message: p.Message, Details: p.Details}
			}
		}

		apiErr := &APIError{
			status:  status,
			Code:    response.CodeForStatus(status),
			Message: message,
		}
		// Request validation failures carry one error per field.
		if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
			details := make([]string, 0, len(errs))
			for _, err := range errs {
				if err != nil {
					details = append(details, err.Error())
				}
			}
			if len(details) > 0 {
				apiErr.Details = details
			}
		}
		return apiErr
	}
}

// handlerError lets huma handlers return service errors directly.
// Anything unclassified becomes a logged 500.
func (s *Server) handlerError(err error) error {
	if err == nil {
		return nil
	}
	if p, ok := response.Classify(err); ok {
		return &APIError{status: p.Status, Code: p.Code, Message: p.Message, Details: p.Details}
	}
	s.logger.Error("Unhandled error", "error", err)
	return &APIError{
		status:  http.StatusInternalServerError,
		Code:    response.CodeForStatus(http.StatusInternalServerError),
		Message: "internal server error",
	}
}
