package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/auth"
	"github.com/orbitapp/orbit-server/internal/importer"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeCSV writes a document with the full header set and one person per name.
func writeCSV(t *testing.T, names ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(importer.Headers, ",") + "\n")
	for _, name := range names {
		cells := make([]string, len(importer.Headers))
		for i, h := range importer.Headers {
			switch h {
			case "name":
				cells[i] = name
			case "type":
				cells[i] = "person"
			}
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func setupDataDir(t *testing.T) string {
	t.Helper()
	t.Setenv("ACCESS_TOKEN_KEY", "")
	t.Setenv("ENV", "development")
	t.Setenv("LOG_LEVEL", "error")
	return t.TempDir()
}

func TestImportExportRoundTrip(t *testing.T) {
	dir := setupDataDir(t)

	csvPath := writeCSV(t, "Ada Lovelace", "Grace Hopper")

	out, err := run(t, "--data-path", dir, "--user", "alice", "import", csvPath)
	require.NoError(t, err)

	var report struct {
		Created int `json:"created"`
		Errors  int `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Created)
	assert.Zero(t, report.Errors)

	out, err = run(t, "--data-path", dir, "--user", "alice", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "Grace Hopper")

	// Another user sees nothing of alice's.
	out, err = run(t, "--data-path", dir, "--user", "bob", "export")
	require.NoError(t, err)
	assert.NotContains(t, out, "Ada Lovelace")
}

func TestImportPlanReportsDuplicates(t *testing.T) {
	dir := setupDataDir(t)

	csvPath := writeCSV(t, "Ada Lovelace")

	_, err := run(t, "--data-path", dir, "--user", "alice", "import", csvPath)
	require.NoError(t, err)

	out, err := run(t, "--data-path", dir, "--user", "alice", "import", "--plan", csvPath)
	require.NoError(t, err)

	var plan struct {
		Rows       int               `json:"rows"`
		Duplicates []json.RawMessage `json:"duplicates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, 1, plan.Rows)
	assert.Len(t, plan.Duplicates, 1)
}

func TestReconcileOnEmptyStore(t *testing.T) {
	dir := setupDataDir(t)

	out, err := run(t, "--data-path", dir, "reconcile")
	require.NoError(t, err)

	var report struct {
		Entities int `json:"entities"`
		Tags     int `json:"tags"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Entities)
	assert.Zero(t, report.Tags)
}

func TestUserRequired(t *testing.T) {
	dir := setupDataDir(t)

	_, err := run(t, "--data-path", dir, "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")

	_, err = run(t, "--data-path", dir, "delete", "some-id")
	require.Error(t, err)
}

func TestTokenMint(t *testing.T) {
	dir := setupDataDir(t)

	out, err := run(t, "--data-path", dir, "--user", "alice", "token", "mint")
	require.NoError(t, err)
	tok := strings.TrimSpace(out)
	require.NotEmpty(t, tok)

	key, err := auth.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(hex.EncodeToString(key), 0)
	require.NoError(t, err)

	claims, err := tokens.VerifyAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
}

func TestBackupAndRestore(t *testing.T) {
	dir := setupDataDir(t)

	csvPath := writeCSV(t, "Ada Lovelace")
	_, err := run(t, "--data-path", dir, "--user", "alice", "import", csvPath)
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "snap.orbit.zip")
	_, err = run(t, "--data-path", dir, "backup", "create", "-o", archive)
	require.NoError(t, err)

	// Restore into a fresh data directory.
	other := t.TempDir()
	out, err := run(t, "--data-path", other, "restore", archive)
	require.NoError(t, err)

	var res struct {
		Restored struct {
			Entities int `json:"entities"`
		} `json:"restored"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Restored.Entities)

	out, err = run(t, "--data-path", other, "--user", "alice", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")
}
