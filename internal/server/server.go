// Package server wires handlers, middleware and routes, and runs the HTTP
// server until it is told to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	"github.com/Dhrumilshah777/imageDrop/internal/feed"
	"github.com/Dhrumilshah777/imageDrop/internal/handler"
	"github.com/Dhrumilshah777/imageDrop/internal/middleware"
	"github.com/Dhrumilshah777/imageDrop/internal/preview"
	"github.com/Dhrumilshah777/imageDrop/internal/service"
	"github.com/Dhrumilshah777/imageDrop/internal/upload"
)

// Config holds server settings.
type Config struct {
	Port               int
	CORSAllowedOrigins []string
	UploadRatePerMin   int
	MaxUploadBytes     int64
	IdentityTimeout    time.Duration
	FeedWait           time.Duration
	Feed               feed.Options
}

// Deps are the services the routes are built on. main owns their
// lifecycle; the server only calls the functions in OnShutdown.
type Deps struct {
	Auth     *service.AuthService
	Tokens   *auth.TokenService
	GitHub   handler.GitHubExchanger // nil disables GitHub sign-in
	Docs     docstore.Subscriber
	Uploads  *upload.Manager
	Previews *preview.Registry

	// OnShutdown runs in order after the HTTP server has drained.
	OnShutdown []func()
}

// Server is the HTTP server and its router.
type Server struct {
	router  *chi.Mux
	handler http.Handler
	config  Config
	deps    Deps
	logger  *slog.Logger
}

// New builds the router.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(s.router)
	return s, nil
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes configures middleware and routes.
//
// GET    /                      gate page
// GET    /healthz               liveness
// GET    /auth/github/login     OAuth redirect
// GET    /auth/github/callback  OAuth callback
// POST   /auth/signup           email/password sign-up
// POST   /auth/login            email/password sign-in
// POST   /auth/logout           release uploads, clear session
// GET    /api/session           gate view (JSON)
// GET    /api/me                current user
// POST   /api/uploads           select a file
// GET    /api/uploads           upload session state
// POST   /api/uploads/start     start the upload
// DELETE /api/uploads           clear the selection
// GET    /api/feed              merged feed
// GET    /api/feed/ws           live feed
// GET    /previews/{token}      local preview
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	d := s.deps
	homeHandler, err := handler.NewHomeHandler(d.Auth, handler.HomeOptions{
		IdentityTimeout: s.config.IdentityTimeout,
		GitHubEnabled:   d.GitHub != nil,
		MaxUploadBytes:  s.config.MaxUploadBytes,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("creating home handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(d.GitHub, d.Auth, d.Uploads, s.logger)
	uploadHandler := handler.NewUploadHandler(d.Uploads, d.Auth, s.config.MaxUploadBytes, s.logger)
	previewHandler := handler.NewPreviewHandler(d.Previews)
	feedHandler := handler.NewFeedHandler(d.Docs, handler.FeedOptions{
		Feed:           s.config.Feed,
		Wait:           s.config.FeedWait,
		AllowedOrigins: s.config.CORSAllowedOrigins,
	}, s.logger)
	limiter := middleware.NewRateLimiter(s.config.UploadRatePerMin)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(d.Tokens))
		r.Get("/", homeHandler.HandleHome)
		r.Get("/api/session", homeHandler.HandleSession)
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.With(auth.OptionalAuth(d.Tokens)).Post("/logout", authHandler.HandleLogout)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Tokens))

		r.Get("/api/me", authHandler.HandleMe)
		r.Get("/api/feed", feedHandler.HandleFeed)
		r.Get("/api/feed/ws", feedHandler.HandleStream)
		r.Get("/previews/{token}", previewHandler.HandleGet)

		r.Get("/api/uploads", uploadHandler.HandleState)
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit)
			r.Post("/api/uploads", uploadHandler.HandleSelect)
			r.Post("/api/uploads/start", uploadHandler.HandleStart)
		})
		r.Delete("/api/uploads", uploadHandler.HandleClear)
	})

	return nil
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and runs the shutdown hooks.
func (s *Server) Start() error {
	defer func() {
		for _, fn := range s.deps.OnShutdown {
			fn()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
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
