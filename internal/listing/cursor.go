package listing

import (
	"encoding/base64"
	"encoding/json/v2"

	"github.com/orbitapp/orbit-server/internal/store"
)

// Cursor holds the per-stream cursors of a listing. A stream missing from the
// map is exhausted and is not queried again.
type Cursor map[StreamName]string

// Encode returns the opaque wire form, or "" when every stream is exhausted.
func (c Cursor) Encode() string {
	if len(c) == 0 {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a composite cursor.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, store.ErrInvalidInput.WithMessage("invalid listing cursor").WithCause(err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, store.ErrInvalidInput.WithMessage("invalid listing cursor").WithCause(err)
	}
	return c, nil
}
