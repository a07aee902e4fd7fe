package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/cascade"
	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/importer"
	"github.com/orbitapp/orbit-server/internal/listing"
	"github.com/orbitapp/orbit-server/internal/sse"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

// testServices wires every service over one temporary store.
type testServices struct {
	store        *store.Store
	sse          *sse.Manager
	entities     *EntityService
	tags         *TagService
	sharing      *SharingService
	interactions *InteractionService
	bits         *BitService
	listing      *ListingService
	imports      *ImportService
}

func setupServices(t *testing.T) *testServices {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "orbit-service-test-*")
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	dispatcher := store.NewDispatcher()

	s, err := store.New(filepath.Join(tmpDir, "test.db"), logger, dispatcher)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	manager := sse.NewManager(logger)
	registry := tagging.NewRegistry(s, logger)
	deleter := cascade.NewDeleter(s, registry, cascade.RetryPolicy{}, logger)
	engine := listing.NewEngine(s, listing.DefaultConfig(), logger)
	hub := listing.NewHub(engine)
	dispatcher.Register(hub)
	dispatcher.Register(manager)

	return &testServices{
		store:        s,
		sse:          manager,
		entities:     NewEntityService(s, registry, deleter, manager, logger),
		tags:         NewTagService(s, registry, logger),
		sharing:      NewSharingService(s, logger),
		interactions: NewInteractionService(s, logger),
		bits:         NewBitService(s, logger),
		listing:      NewListingService(engine, hub, logger),
		imports:      NewImportService(importer.New(s, registry, 0, logger), manager, logger),
	}
}

func (ts *testServices) createEntity(t *testing.T, owner, name string, tags map[domain.TagCategory][]string) *domain.Entity {
	t.Helper()
	e, err := ts.entities.Create(context.Background(), owner, EntityInput{Name: name, Tags: tags})
	require.NoError(t, err)
	return e
}

func (ts *testServices) usage(t *testing.T, c domain.TagCategory, id string) int {
	t.Helper()
	tag, err := ts.store.GetTag(context.Background(), c, id)
	require.NoError(t, err)
	return tag.UsageCount
}
