// Package server is the composition root: it builds every dependency from
// config, mounts the routes and owns shutdown.
//
// DEPENDENCY FLOW:
//
//	config → sqlite.DB ──→ IdentityService ─→ AuthHandler
//	       ↘ cache ─→ ReadPath ─→ ProfileService ─→ ProfileHandler, PageHandler
//	                          ↘ ClickAccumulator ─→ AnalyticsHandler
//	       ↘ enrich.Linktree ─→ ImportService ─→ ImportHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/cache"
	"github.com/sakif/linkbio/internal/config"
	"github.com/sakif/linkbio/internal/enrich"
	"github.com/sakif/linkbio/internal/handler"
	"github.com/sakif/linkbio/internal/metrics"
	"github.com/sakif/linkbio/internal/middleware"
	sqliteRepo "github.com/sakif/linkbio/internal/repository/sqlite"
	"github.com/sakif/linkbio/internal/service"
)

// Server owns the router and every long-lived resource behind it.
//
// RESOURCE OWNERSHIP:
// db, cache and clicks are created in New and released in Close, in the
// reverse order: pending clicks drain into the db before it closes.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db     *sqliteRepo.DB
	cache  cache.ProjectionCache
	clicks *service.ClickAccumulator

	closeOnce sync.Once
	closeErr  error
}

// New wires the server. providers are the external sign-in providers
// enabled for this deployment and may be empty.
func New(cfg *config.Config, providers []auth.Provider, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pc, err := cache.New(cache.Options{
		RedisAddr:             cfg.RedisAddr,
		RedisPassword:         cfg.RedisPassword,
		RedisDB:               cfg.RedisDB,
		AllowInMemoryFallback: true,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		cache:  pc,
		clicks: service.NewClickAccumulator(db, cfg.ClickWorkers, cfg.ClickQueueSize, logger),
	}

	if err := s.setupRoutes(providers); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	s.clicks.Start()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts everything.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz                           → storage ping
//	GET  /metrics                           → Prometheus
//	GET  /auth/{provider}/login|callback    → external sign-in
//	POST /auth/login, /auth/logout          → local sign-in, sign-out
//	POST /api/handles/check                 → availability
//	GET  /api/profiles/{handle}             → public projection (JSON)
//	POST /api/analytics/click               → click, acknowledged with 202
//	GET  /api/me, /api/me/profile           → [auth]
//	POST /api/onboarding                    → [auth] claim a handle
//	PUT  /api/profiles/{handle}             → [auth] owner save
//	POST /api/import                        → [auth] enrich from a source page
//	GET  /go/{handle}/{kind}/{itemID}       → count a click and redirect
//	GET  /, /onboarding, /{handle}          → HTML pages
//
// Auth is disabled when no JWT secret is configured; only the public
// routes are mounted then.
func (s *Server) setupRoutes(providers []auth.Provider) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)

	reads := service.NewReadPath(s.db, s.cache, s.config.ProjectionTTL, s.logger)
	profiles := service.NewProfileService(s.db, s.db, reads, s.logger)

	var tokens *auth.TokenService
	if s.config.AuthEnabled() {
		var err error
		if tokens, err = auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL); err != nil {
			return err
		}
	} else {
		s.logger.Warn("JWT secret not set: authentication is disabled")
	}

	providerNames := make([]string, 0, len(providers))
	for _, p := range providers {
		providerNames = append(providerNames, string(p.Name()))
	}

	health := handler.NewHealthHandler(s.db, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, reads, s.logger)
	analyticsHandler := handler.NewAnalyticsHandler(s.clicks, reads, s.logger)
	pages, err := handler.NewPageHandler(reads, profiles, providerNames, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/handles/check", profileHandler.HandleCheck)
		r.Get("/profiles/{handle}", profileHandler.HandleGetPublic)
		r.Post("/analytics/click", analyticsHandler.HandleClick)

		if tokens != nil {
			s.mountAuthenticated(r, tokens, providers, profileHandler)
		}
	})

	s.router.Get("/go/{handle}/{kind}/{itemID}", analyticsHandler.HandleRedirect)
	s.router.Get("/", pages.HandleHome)
	s.router.Get("/onboarding", pages.HandleOnboarding)
	s.router.Get("/{handle}", pages.HandleProfile)
	return nil
}

// mountAuthenticated adds the owner routes under /api and the /auth routes
// at the root.
func (s *Server) mountAuthenticated(api chi.Router, tokens *auth.TokenService, providers []auth.Provider, profileHandler *handler.ProfileHandler) {
	identity := service.NewIdentityService(s.db, tokens, auth.NewPasswordService(), s.logger)
	authHandler := handler.NewAuthHandler(identity, providers, tokens, s.config.CookieSecure, s.logger)

	importer := enrich.NewLinktree(s.config.ImportTimeout, s.config.ImportMockFallback, s.logger)
	importHandler := handler.NewImportHandler(service.NewImportService(importer, s.logger), s.logger)

	api.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/me", authHandler.HandleMe)
		r.Get("/me/profile", profileHandler.HandleGetOwn)
		r.Post("/onboarding", profileHandler.HandleOnboarding)
		r.Put("/profiles/{handle}", profileHandler.HandleSave)
		r.Post("/import", importHandler.HandleImport)
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLocalLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/{provider}/login", authHandler.HandleProviderLogin)
		r.Get("/{provider}/callback", authHandler.HandleProviderCallback)
	})
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully and
// releases every resource.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.config.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close drains pending clicks, then closes the cache and the database. It
// is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.clicks.Stop()
		var errs []error
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
