// Package api exposes the user graph over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jacentio/usergraph/seed"
	"github.com/jacentio/usergraph/store"
	"github.com/jacentio/usergraph/users"
)

// Service is the set of user graph operations the router dispatches to.
type Service interface {
	Reload(ctx context.Context) (seed.Summary, error)
	GetUser(ctx context.Context, id int64) (store.Document, error)
	ListUsers(ctx context.Context, p users.ListParams) ([]store.Document, error)
	DeleteAll(ctx context.Context) error
	DeleteUser(ctx context.Context, id int64) error
	PutUser(ctx context.Context, doc store.Document) (store.Document, error)
}

// Pagination holds listing defaults.
type Pagination struct {
	// DefaultLimit applies when the request has no limit.
	// Default: 10
	DefaultLimit int64

	// MaxLimit caps the limit a request may ask for.
	// Default: 100
	MaxLimit int64
}

// Options configures the router.
type Options struct {
	Pagination Pagination

	// MaxBodyBytes bounds PUT /users bodies.
	// Default: 1 MiB
	MaxBodyBytes int64
}

// DefaultOptions returns the options used when none are set.
func DefaultOptions() Options {
	return Options{
		Pagination: Pagination{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		MaxBodyBytes: 1 << 20,
	}
}

func (o *Options) validate() {
	d := DefaultOptions()
	if o.Pagination.DefaultLimit < 1 {
		o.Pagination.DefaultLimit = d.Pagination.DefaultLimit
	}
	if o.Pagination.MaxLimit < 1 {
		o.Pagination.MaxLimit = d.Pagination.MaxLimit
	}
	if o.Pagination.DefaultLimit > o.Pagination.MaxLimit {
		o.Pagination.DefaultLimit = o.Pagination.MaxLimit
	}
	if o.MaxBodyBytes < 1 {
		o.MaxBodyBytes = d.MaxBodyBytes
	}
}

// Server holds the handlers' dependencies.
type Server struct {
	svc     Service
	options Options
	logger  *slog.Logger
}

// NewServer creates a new Server.
func NewServer(svc Service, options Options, logger *slog.Logger) *Server {
	options.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:     svc,
		options: options,
		logger:  logger,
	}
}

// Handler builds the routed, instrumented http.Handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handleWelcome).Methods(http.MethodGet)
	router.HandleFunc("/load", s.handleLoad).Methods(http.MethodGet)

	router.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	router.HandleFunc("/users", s.handleDeleteUsers).Methods(http.MethodDelete)
	router.HandleFunc("/users", s.handlePutUser).Methods(http.MethodPut)
	// The id segment may be empty so that "/users/" answers 400, not 404.
	router.HandleFunc("/users/{id:[^/]*}", s.handleGetUser).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[^/]*}", s.handleDeleteUser).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handleNotFound)

	return s.requestID(s.accessLog(s.recoverer(router)))
}
