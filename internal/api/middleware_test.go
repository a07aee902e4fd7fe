package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/http/response"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	inputs := map[string]any{
		"200": map[string]string{"key": "value"},
		"201": map[string]string{"id": "123"},
		"204": nil,
		"400": errors.New("invalid input"),
		"409": &APIError{Code: "CONFLICT", Message: "already confirmed"},
		"500": errors.New("internal error"),
	}

	for status, input := range inputs {
		t.Run(status, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, status, input)
			require.NoError(t, err)

			env, ok := result.(response.Envelope)
			require.True(t, ok)
			assert.Equal(t, response.Version, env.V)
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"name": "Dana"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	env := result.(response.Envelope)
	assert.True(t, env.Success)
	assert.Equal(t, data, env.Data)
	assert.Empty(t, env.Error)
}

func TestEnvelopeTransformer_PlainError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "400", errors.New("validation failed"))
	require.NoError(t, err)

	env := result.(response.Envelope)
	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	assert.Equal(t, "validation failed", env.Error)
	assert.Equal(t, "VALIDATION", env.Code)
}

func TestEnvelopeTransformer_ErrorWithDetails(t *testing.T) {
	apiErr := &APIError{
		Code:    "VALIDATION",
		Message: "bad rows",
		Details: []string{"row 2", "row 7"},
	}

	result, err := EnvelopeTransformer(nil, "400", apiErr)
	require.NoError(t, err)

	env := result.(response.Envelope)
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Equal(t, "bad rows", env.Message)
	assert.Equal(t, "bad rows", env.Error)
	assert.Equal(t, []string{"row 2", "row 7"}, env.Details)
}

func TestEnvelopeTransformer_PassesEnvelopeThrough(t *testing.T) {
	in := response.Envelope{V: response.Version, Success: true, Data: "x"}
	out, err := EnvelopeTransformer(nil, "200", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:5000", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.1:5000", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer v4.local.abc")
	assert.True(t, ok)
	assert.Equal(t, "v4.local.abc", tok)

	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer ")
	assert.False(t, ok)
}
