// Package auth verifies and mints the PASETO access tokens that identify users.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile is the name of the key file under the data path.
const KeyFile = "auth.key"

// ErrInvalidKey is returned for a key that is not 32 hex-encoded bytes.
var ErrInvalidKey = errors.New("auth key must be 64 hex characters")

// ParseKey decodes a hex-encoded v4 symmetric key.
func ParseKey(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	if len(keyHex) != keyHexSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return key, nil
}

// LoadOrGenerateKey returns the key stored in <dataPath>/auth.key, creating
// the file with a fresh random key on first use. A present but malformed
// file is an error rather than being replaced, so issued tokens keep verifying.
func LoadOrGenerateKey(dataPath string) ([]byte, error) {
	keyPath := filepath.Join(dataPath, KeyFile)

	//#nosec G304 -- key path is derived from the configured data path
	data, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		key, err := ParseKey(string(data))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", keyPath, err)
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", keyPath, err)
	}

	key := make([]byte, keyBytesSize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate auth key: %w", err)
	}

	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("save auth key: %w", err)
	}

	return key, nil
}
