package auth

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, d time.Duration) *TokenService {
	t.Helper()
	key, err := LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	ts, err := NewTokenService(hex.EncodeToString(key), d)
	require.NoError(t, err)
	return ts
}

func TestTokenService_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t, time.Minute)

	token, err := ts.GenerateAccessToken("alice")
	require.NoError(t, err)

	claims, err := ts.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "alice", claims.Subject)
	assert.NotEmpty(t, claims.TokenID)
}

func TestTokenService_RejectsForeignAndExpiredTokens(t *testing.T) {
	ts := newTestTokenService(t, time.Minute)
	other := newTestTokenService(t, time.Minute)

	token, err := other.GenerateAccessToken("alice")
	require.NoError(t, err)
	_, err = ts.VerifyAccessToken(token)
	assert.Error(t, err, "signed with another key")

	expired := newTestTokenService(t, -time.Minute)
	stale, err := expired.GenerateAccessToken("alice")
	require.NoError(t, err)
	_, err = expired.VerifyAccessToken(stale)
	assert.Error(t, err)

	_, err = ts.VerifyAccessToken("v4.local.garbage")
	assert.Error(t, err)
}

func TestNewTokenService_KeyLength(t *testing.T) {
	_, err := NewTokenService("abcd", time.Minute)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey_Reuses(t *testing.T) {
	dir := t.TempDir()
	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestLoadOrGenerateKey_RejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFile), []byte("not-hex"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	require.ErrorIs(t, err, ErrInvalidKey)

	// The bad file is left in place.
	data, err := os.ReadFile(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, "not-hex", string(data))
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey(" " + strings.Repeat("ab", 32) + "\n")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = ParseKey("abcd")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParseKey(strings.Repeat("zz", 32))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
