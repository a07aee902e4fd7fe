package providers

import (
	"github.com/samber/do/v2"

	"github.com/orbitapp/orbit-server/internal/cascade"
	"github.com/orbitapp/orbit-server/internal/config"
	"github.com/orbitapp/orbit-server/internal/importer"
	"github.com/orbitapp/orbit-server/internal/listing"
	"github.com/orbitapp/orbit-server/internal/logger"
	"github.com/orbitapp/orbit-server/internal/service"
	"github.com/orbitapp/orbit-server/internal/sse"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

// ProvideTagRegistry provides the tag registry that keeps usage counts.
func ProvideTagRegistry(i do.Injector) (*tagging.Registry, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return tagging.NewRegistry(storeHandle.Store, log.Logger), nil
}

// ProvideDeleter provides the cascade deleter.
func ProvideDeleter(i do.Injector) (*cascade.Deleter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*tagging.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	retry := cascade.RetryPolicy{
		Attempts:   cfg.Cascade.RetryAttempts,
		Backoff:    cfg.Cascade.RetryBackoff,
		MaxBackoff: cfg.Cascade.MaxBackoff,
	}
	return cascade.NewDeleter(storeHandle.Store, registry, retry, log.Logger), nil
}

// ProvideListingEngine provides the listing engine.
func ProvideListingEngine(i do.Injector) (*listing.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return listing.NewEngine(storeHandle.Store, listing.Config{
		PageSize:       cfg.Listing.PageSize,
		SearchPageSize: cfg.Listing.SearchPageSize,
	}, log.Logger), nil
}

// ProvideListingHub provides the live listing hub and subscribes it to store changes.
func ProvideListingHub(i do.Injector) (*listing.Hub, error) {
	engine := do.MustInvoke[*listing.Engine](i)
	dispatcher := do.MustInvoke[*store.Dispatcher](i)

	hub := listing.NewHub(engine)
	dispatcher.Register(hub)
	return hub, nil
}

// StreamsHandle wraps the open listing streams with shutdown capability.
type StreamsHandle struct {
	*sse.Streams
}

// Shutdown implements do.Shutdownable.
func (h *StreamsHandle) Shutdown() error {
	h.CloseAll()
	return nil
}

// ProvideStreams provides the registry of open listing streams.
func ProvideStreams(i do.Injector) (*StreamsHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return &StreamsHandle{Streams: sse.NewStreams(log.Logger)}, nil
}

// ProvideEntityService provides the entity service.
func ProvideEntityService(i do.Injector) (*service.EntityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*tagging.Registry](i)
	deleter := do.MustInvoke[*cascade.Deleter](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewEntityService(storeHandle.Store, registry, deleter, sseHandle.Manager, log.Logger), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*tagging.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, registry, log.Logger), nil
}

// ProvideSharingService provides the share pack service.
func ProvideSharingService(i do.Injector) (*service.SharingService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSharingService(storeHandle.Store, log.Logger), nil
}

// ProvideInteractionService provides the interaction service.
func ProvideInteractionService(i do.Injector) (*service.InteractionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewInteractionService(storeHandle.Store, log.Logger), nil
}

// ProvideBitService provides the bit service.
func ProvideBitService(i do.Injector) (*service.BitService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBitService(storeHandle.Store, log.Logger), nil
}

// ProvideListingService provides the listing service.
func ProvideListingService(i do.Injector) (*service.ListingService, error) {
	engine := do.MustInvoke[*listing.Engine](i)
	hub := do.MustInvoke[*listing.Hub](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewListingService(engine, hub, log.Logger), nil
}

// ProvideImportService provides the CSV import and export service.
func ProvideImportService(i do.Injector) (*service.ImportService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*tagging.Registry](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	im := importer.New(storeHandle.Store, registry, cfg.Import.ChunkSize, log.Logger)
	return service.NewImportService(im, sseHandle.Manager, log.Logger), nil
}
