// Package api provides the HTTP API server and handlers for Orbit.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/orbitapp/orbit-server/internal/auth"
	"github.com/orbitapp/orbit-server/internal/metrics"
	"github.com/orbitapp/orbit-server/internal/ratelimit"
	"github.com/orbitapp/orbit-server/internal/sse"
	"github.com/orbitapp/orbit-server/internal/store"
)

// Options carries the HTTP settings that are not services.
type Options struct {
	CORSOrigins    []string
	AdminUserIDs   []string
	MaxUploadBytes int64
	// RateLimiter is optional; nil disables per-client limits.
	RateLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store          *store.Store
	services       *Services
	tokens         *auth.TokenService
	sseManager     *sse.Manager
	sseHandler     *sse.Handler
	listingHandler *sse.ListingHandler
	streams        *sse.Streams
	router         *chi.Mux
	api            huma.API
	logger         *slog.Logger

	adminIDs    []string
	maxUpload   int64
	rateLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st *store.Store,
	services *Services,
	tokens *auth.TokenService,
	sseManager *sse.Manager,
	streams *sse.Streams,
	opts Options,
	logger *slog.Logger,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadSize
	}

	s := &Server{
		store:          st,
		services:       services,
		tokens:         tokens,
		sseManager:     sseManager,
		sseHandler:     sse.NewHandler(sseManager, logger),
		listingHandler: sse.NewListingHandler(services.Listing, streams, logger),
		streams:        streams,
		router:         chi.NewRouter(),
		logger:         logger,
		adminIDs:       opts.AdminUserIDs,
		maxUpload:      opts.MaxUploadBytes,
		rateLimiter:    opts.RateLimiter,
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("Orbit API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	if s.rateLimiter != nil {
		s.router.Use(RateLimitMiddleware(s.rateLimiter, s.logger))
	}

	s.router.Use(authMiddleware(s.tokens))
}

// requestLogger logs one line per request at debug level, errors at warn.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// registerRoutes wires huma operations and the raw streaming routes.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerEntityRoutes()
	s.registerTagRoutes()
	s.registerImportRoutes()
	s.registerShareRoutes()
	s.registerInteractionRoutes()
	s.registerBitRoutes()
	s.registerAdminRoutes()

	// Streaming and file responses bypass huma's JSON envelope.
	s.router.Get("/api/v1/events", s.handleEvents)
	s.router.Get("/api/v1/entities/stream", s.handleEntityStream)
	s.router.Post("/api/v1/entities/stream/{id}/more", s.handleStreamLoadMore)
	s.router.Get("/api/v1/export", s.handleExport)
	s.router.Handle("/metrics", metrics.Handler())
}
