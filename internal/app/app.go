// Package app wires configuration, the store backend, the services and the
// HTTP router together for the command-line and Lambda entrypoints.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/jacentio/usergraph/api"
	"github.com/jacentio/usergraph/internal/config"
	"github.com/jacentio/usergraph/seed"
	"github.com/jacentio/usergraph/store"
	"github.com/jacentio/usergraph/store/dynamostore"
	"github.com/jacentio/usergraph/store/mongostore"
	"github.com/jacentio/usergraph/users"
)

// App is the application layer between the entrypoints and the services.
// The store handle starts disconnected; call Connect (or Serve) before use.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *store.Registry
	handle   *store.Handle
	opener   store.Opener
	service  *users.Service
	server   *api.Server
}

// NewOpenerFromConfig returns the backend opener selected by cfg.Backend.
func NewOpenerFromConfig(cfg store.Config) (store.Opener, error) {
	switch cfg.Backend {
	case store.BackendMongo:
		return mongostore.Opener(cfg), nil
	case store.BackendDynamoDB:
		return dynamostore.Opener(cfg), nil
	case store.BackendMemory:
		return func(context.Context) (store.Database, error) {
			return store.NewMemory(), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// New creates a fully wired App from the given config. It does not connect.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opener, err := NewOpenerFromConfig(cfg.Store)
	if err != nil {
		return nil, err
	}

	registry := store.DefaultRegistry()
	handle := store.NewHandle()
	source := seed.NewHTTPSource(cfg.Seed.BaseURL, cfg.Seed.UserLimit, cfg.Seed.Timeout.Duration)
	loader := seed.NewLoader(handle, source, registry, logger)
	service := users.NewService(handle, registry, loader, logger)
	server := api.NewServer(service, api.Options{
		Pagination: api.Pagination{
			DefaultLimit: cfg.Pagination.DefaultLimit,
			MaxLimit:     cfg.Pagination.MaxLimit,
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		handle:   handle,
		opener:   opener,
		service:  service,
		server:   server,
	}, nil
}

// Connect opens the configured backend.
func (a *App) Connect(ctx context.Context) error {
	if err := a.handle.Connect(ctx, a.opener); err != nil {
		return fmt.Errorf("connecting to %s store: %w", a.cfg.Store.Backend, err)
	}
	a.logger.Info("store connected", "backend", a.cfg.Store.Backend)
	return nil
}

// Service returns the user graph service.
func (a *App) Service() *users.Service { return a.service }

// Registry returns the relationship registry.
func (a *App) Registry() *store.Registry { return a.registry }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Serve listens on cfg.Server.Addr, connects the store once the listener is up
// and blocks until ctx is cancelled or the server fails. Requests that arrive
// before the store is connected answer 500.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Server.Addr, err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  a.cfg.Server.IdleTimeout.Duration,
		ErrorLog:     slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	a.logger.Info("server listening", "addr", ln.Addr().String())

	shutdown := func() error {
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}

	if err := a.Connect(ctx); err != nil {
		_ = shutdown()
		return err
	}

	select {
	case <-ctx.Done():
		return shutdown()
	case err := <-serverErr:
		return err
	}
}

// Close disconnects the store.
func (a *App) Close(ctx context.Context) error {
	return a.handle.Close(ctx)
}
