package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Forbidden("only the owner can delete this entity")

	assert.True(t, Is(err, ErrForbidden))
	assert.False(t, Is(err, ErrNotFound))
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("import: %w", MalformedInputf("row %d: addresses must be a JSON array", 3))

	assert.True(t, Is(err, ErrMalformedInput))
	assert.Equal(t, "import: row 3: addresses must be a JSON array", err.Error())
}

func TestError_WithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Internal("commit batch").WithCause(cause)

	assert.Equal(t, "commit batch: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeAlreadyExists, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeValidation, http.StatusBadRequest},
		{CodeMalformedInput, http.StatusBadRequest},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_WithDetailsKeepsCode(t *testing.T) {
	err := ValidationWithDetails("validation failed", map[string]string{"name": "is required"})
	withMore := err.WithDetails(map[string]string{"type": "is invalid"})

	assert.Equal(t, CodeValidation, withMore.Code)
	assert.Equal(t, map[string]string{"type": "is invalid"}, withMore.Details)
}
