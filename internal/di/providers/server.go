package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/orbitapp/orbit-server/internal/api"
	"github.com/orbitapp/orbit-server/internal/auth"
	"github.com/orbitapp/orbit-server/internal/config"
	"github.com/orbitapp/orbit-server/internal/logger"
	"github.com/orbitapp/orbit-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideAPIServer provides the HTTP handler with every route registered.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	streams := do.MustInvoke[*StreamsHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Entity:      do.MustInvoke[*service.EntityService](i),
		Tag:         do.MustInvoke[*service.TagService](i),
		Sharing:     do.MustInvoke[*service.SharingService](i),
		Interaction: do.MustInvoke[*service.InteractionService](i),
		Bit:         do.MustInvoke[*service.BitService](i),
		Listing:     do.MustInvoke[*service.ListingService](i),
		Import:      do.MustInvoke[*service.ImportService](i),
	}

	return api.NewServer(storeHandle.Store, services, tokens, sseHandle.Manager, streams.Streams, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		AdminUserIDs:   cfg.Auth.AdminUserIDs,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		RateLimiter:    limiter.Limiter,
	}, log.Logger), nil
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	handler := do.MustInvoke[*api.Server](i)
	log := do.MustInvoke[*logger.Logger](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
