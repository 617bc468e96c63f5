// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package server binds the location index to JSON over HTTP with an
// OpenAPI description generated by huma.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	Version      string
}

// Server wraps a chi router with the huma API and an HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services
	done     chan struct{}
	stop     sync.Once
}

// New creates a Server with every route registered.
func New(cfg Config, svc *Services) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, locuserr.New(locuserr.CodeServerConfigInvalid, "listen address is required")
	}
	if svc == nil {
		return nil, locuserr.New(locuserr.CodeServerConfigInvalid, "services are required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{cfg: cfg, services: svc, done: make(chan struct{})}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	humaConfig := huma.DefaultConfig("Locus", cfg.Version)
	humaConfig.Info.Description = "Semantic location index: describe a place, find places by meaning."

	r.Use(rateLimitMiddleware(cfg.RateLimit, apiPrefix, s.done))
	s.api = humachi.New(r, humaConfig)
	if svc.metrics != nil {
		r.Handle("/metrics", svc.metrics.Handler())
	}

	s.router = r
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, e.g. for rendering the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return locuserr.Wrapf(err, locuserr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = s.Close() }()

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return locuserr.Wrapf(err, locuserr.CodeServerStartFailure, "serving on %s", ln.Addr())
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return locuserr.Wrapf(err, locuserr.CodeServerShutdownFailure, "shutting down")
	}
	slog.Info("http server stopped")
	return <-errCh
}

// Close releases background resources. Serve calls it on return; call it
// directly when only Handler is used.
func (s *Server) Close() error {
	s.stop.Do(func() { close(s.done) })
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}
