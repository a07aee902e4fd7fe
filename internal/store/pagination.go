package store

import (
	"encoding/base64"
	"strings"
)

const (
	// DefaultPageSize applies when a query does not set a limit.
	DefaultPageSize = 20
	// MaxPageSize caps any single page.
	MaxPageSize = 500
)

// Page is one page of query results.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"` // Empty if no more pages
	HasMore    bool   `json:"has_more"`
}

// clampLimit applies the default and maximum page sizes.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return min(limit, MaxPageSize)
}

// EncodeCursor creates an opaque cursor from the last key of a page.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor decodes a cursor back to a key.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidInput.WithMessage("invalid cursor").WithCause(err)
	}

	return string(decoded), nil
}

// cursorWithin reports whether a decoded cursor belongs to the scanned range.
func cursorWithin(key, prefix string) error {
	if !strings.HasPrefix(key, prefix) {
		return ErrInvalidInput.WithMessage("cursor does not belong to this query")
	}
	return nil
}
