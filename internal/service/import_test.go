package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/domain"
	domainerrors "github.com/orbitapp/orbit-server/internal/errors"
	"github.com/orbitapp/orbit-server/internal/importer"
	"github.com/orbitapp/orbit-server/internal/listing"
)

func csvDoc(lines ...string) *strings.Reader {
	head := strings.Join(importer.Headers, ",")
	return strings.NewReader(head + "\n" + strings.Join(lines, "\n"))
}

func TestImportService_PlanWritesNothing(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	ts.createEntity(t, "alice", "Dana", nil)

	plan, err := ts.imports.Plan(ctx, "alice", csvDoc(
		",dana,person,,,,,,,,,,,,,",
		",Eli,person,,,,,,,,,,,,,",
	))
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Rows)
	require.Len(t, plan.Duplicates, 1)
	assert.Equal(t, "dana", plan.Duplicates[0].Name)

	res, err := ts.listing.List(ctx, "alice", listing.Request{Audience: listing.AudienceOwned})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestImportService_RunRejectsMalformedDocument(t *testing.T) {
	ts := setupServices(t)

	_, err := ts.imports.Run(context.Background(), "alice", csvDoc(
		`,Dana,person,,,,,,,,,,,,"{not json",`,
	), nil)
	assert.True(t, errors.Is(err, domainerrors.ErrMalformedInput))

	res, err := ts.listing.List(context.Background(), "alice", listing.Request{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestImportService_RunEmitsCompletion(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	client, err := ts.sse.Connect("alice")
	require.NoError(t, err)
	defer ts.sse.Disconnect(client.ID)
	go ts.sse.Start(t.Context())

	report, err := ts.imports.Run(ctx, "alice", csvDoc(
		",Dana,person,,Haifa,,,,,,,,,,,",
	), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, ts.usage(t, domain.CategoryFrom, "haifa"))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-client.EventChan:
			if ev.Type == "import.completed" {
				return
			}
		case <-deadline:
			t.Fatal("import.completed not delivered")
		}
	}
}

func TestImportService_ExportRoundTrip(t *testing.T) {
	ts := setupServices(t)
	ctx := context.Background()

	ts.createEntity(t, "alice", "Dana", map[domain.TagCategory][]string{domain.CategoryField: {"Design"}})

	var buf bytes.Buffer
	n, err := ts.imports.Export(ctx, "alice", nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-importing the export into another account recreates the entity.
	report, err := ts.imports.Run(ctx, "bob", strings.NewReader(buf.String()), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created, "ids belong to alice")
	assert.Equal(t, 1, report.Skipped)
}
