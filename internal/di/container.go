// Package di provides dependency injection configuration for the Orbit server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/orbitapp/orbit-server/internal/auth"
	"github.com/orbitapp/orbit-server/internal/config"
	"github.com/orbitapp/orbit-server/internal/di/providers"
	"github.com/orbitapp/orbit-server/internal/logger"
	"github.com/orbitapp/orbit-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideDispatcher)
	do.Provide(injector, providers.ProvideStore)

	// Domain infrastructure
	do.Provide(injector, providers.ProvideTagRegistry)
	do.Provide(injector, providers.ProvideDeleter)
	do.Provide(injector, providers.ProvideListingEngine)
	do.Provide(injector, providers.ProvideListingHub)
	do.Provide(injector, providers.ProvideStreams)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideEntityService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideSharingService)
	do.Provide(injector, providers.ProvideInteractionService)
	do.Provide(injector, providers.ProvideBitService)
	do.Provide(injector, providers.ProvideListingService)
	do.Provide(injector, providers.ProvideImportService)

	// Workers
	do.Provide(injector, providers.ProvideTagReconcileJob)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	invokes := []func() error{
		invoke[*config.Config](injector),
		invoke[*logger.Logger](injector),
		invoke[providers.AuthKey](injector),
		invoke[*providers.SSEManagerHandle](injector),
		invoke[*providers.StoreHandle](injector),
		invoke[*auth.TokenService](injector),

		invoke[*service.EntityService](injector),
		invoke[*service.TagService](injector),
		invoke[*service.SharingService](injector),
		invoke[*service.InteractionService](injector),
		invoke[*service.BitService](injector),
		invoke[*service.ListingService](injector),
		invoke[*service.ImportService](injector),

		invoke[*providers.TagReconcileJob](injector),
		invoke[*providers.HTTPServerHandle](injector),
	}
	for _, fn := range invokes {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func invoke[T any](injector *do.RootScope) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
