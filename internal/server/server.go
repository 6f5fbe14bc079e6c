// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/inkwell/internal/config"
	"github.com/jeranaias/inkwell/internal/engine"
	"github.com/jeranaias/inkwell/internal/ollama"
	"github.com/jeranaias/inkwell/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// MaxBodyBytes caps request bodies; documents larger than this are rejected.
	MaxBodyBytes = 8 << 20

	readTimeout = 30 * time.Second
	idleTimeout = 120 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Server serves the engine over HTTP. Configuration is read from the store
// on every request, so edits picked up by the file watcher apply without a
// restart.
type Server struct {
	store   *config.Store
	history *storage.History
	logger  *slog.Logger
	version string
	addr    string
	limiter *RateLimiter

	router chi.Router
	server *http.Server

	mu      sync.Mutex
	clients map[string]*ollama.Client
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request lines and engine events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHistory records invocations and enables the /api/history routes.
func WithHistory(h *storage.History) Option {
	return func(s *Server) { s.history = h }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithAddr overrides the configured listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// New creates a server over store.
func New(store *config.Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		version: "dev",
		clients: make(map[string]*ollama.Client),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	cfg := store.Snapshot()
	s.limiter = NewRateLimiter(cfg.Server.RateLimit, cfg.Server.Burst)
	s.router = s.routes()
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		noSniff,
	)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(jsonContentType)
		api.Use(RateLimitMiddleware(s.limiter))

		api.Get("/commands", s.handleCommands)
		api.Get("/models", s.handleModels)
		api.Post("/compose", s.handleCompose)
		api.Post("/invoke", s.handleInvoke)

		if s.history != nil {
			api.Get("/history", s.handleHistory)
			api.Get("/history/{id}", s.handleHistoryItem)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "not_found")
	})
	return r
}

// ============================================================================
// OLLAMA CLIENTS
// ============================================================================

// client returns a shared client for the configured server URL and timeout.
func (s *Server) client(cfg *config.Config) *ollama.Client {
	key := cfg.ServerURL + "|" + cfg.RequestTimeout.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		return c
	}
	c := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.RequestTimeout,
	})
	s.clients[key] = c
	return c
}

// engine builds an engine for one request.
func (s *Server) engine(cfg *config.Config) *engine.Engine {
	opts := []engine.Option{engine.WithLogger(s.logger)}
	if s.history != nil {
		opts = append(opts, engine.WithRecorder(s.history))
	}
	return engine.New(s.client(cfg), opts...)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.addr
	if addr == "" {
		addr = s.store.Snapshot().Server.Listen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.store.Snapshot()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RequestTimeout + readTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String(), "version", s.version)
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parseLimit reads a positive integer query parameter, or returns def.
func parseLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
