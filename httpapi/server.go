// Package httpapi exposes the banking facade over HTTP with gorilla/mux.
package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	banking "github.com/goliatone/go-banking"
	"github.com/goliatone/go-banking/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	HeaderAPIKey      = "X-API-Key"
	HeaderAccessToken = "X-Access-Token"
	HeaderRequestID   = "X-Request-ID"
)

type Server struct {
	facade    *banking.Facade
	apiKey    string
	logger    core.Logger
	requestID func() string
	router    *mux.Router
}

type Option func(*Server)

// WithAPIKey sets the key checked on every route except /health and
// institution listings. Without a key those routes answer 401.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = strings.TrimSpace(key)
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithRequestIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.requestID = fn
		}
	}
}

func NewServer(facade *banking.Facade, opts ...Option) (*Server, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: facade is required")
	}
	s := &Server{
		facade:    facade,
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = glog.Ensure(s.logger)
	s.router = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the configured router so hosts can mount extra routes.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.loggingMiddleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.respondError(w, req, core.NotFoundError("", "route not found"))
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	public := r.PathPrefix("/v1").Subrouter()
	public.HandleFunc("/{provider}/institutions", s.handleListInstitutions).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.apiKeyMiddleware)
	api.HandleFunc("/{provider}/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/{provider}/accounts/{id}/balance", s.handleGetBalance).Methods(http.MethodGet)
	api.HandleFunc("/{provider}/accounts/{id}/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/{provider}/connection", s.handleConnectionStatus).Methods(http.MethodGet)
	api.HandleFunc("/{provider}/connection", s.handleDeleteConnection).Methods(http.MethodDelete)
	api.HandleFunc("/{provider}/auth/exchange", s.handleExchangeToken).Methods(http.MethodPost)
	api.HandleFunc("/{provider}/auth/refresh", s.handleRefreshToken).Methods(http.MethodPost)
	api.HandleFunc("/connections/{id}/sync", s.handleSyncConnection).Methods(http.MethodPost)
	api.HandleFunc("/sync-jobs/{id}", s.handleGetSyncJob).Methods(http.MethodGet)
	api.HandleFunc("/sync-jobs/{id}/resume", s.handleResumeSyncJob).Methods(http.MethodPost)

	return r
}
