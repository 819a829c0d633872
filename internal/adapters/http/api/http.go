// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/churn/internal/artifact"
	"github.com/okian/churn/internal/domain/customer"
	"github.com/okian/churn/internal/domain/prediction"
	"github.com/okian/churn/pkg/logger"
	"github.com/okian/churn/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Predict scores one validated record.
	Predict(ctx context.Context, rec customer.Record) (prediction.Result, error)

	// Ready reports whether artifacts are loaded and the service accepts traffic.
	Ready() bool

	// Artifacts describes the loaded transformer and model.
	Artifacts() (transformer, model artifact.Info)
}

// Server wires HTTP routes for the business API.
type Server struct {
	rootHandler    *RootHandler
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler

	allowedOrigins []string
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allow list; "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithLogger sets the logger used by middleware and handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{allowedOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}

	s.rootHandler = NewRootHandler()
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(statsProvider)
	s.predictHandler = NewPredictHandler(deps, s.logger)
	return s
}

// Register attaches middleware and all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(corsMiddleware(s.allowedOrigins))

	r.Get("/", MetricsMiddleware(s.rootHandler.HandleRoot, "root"))
	r.Post("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", NewKind(r.URL.Path, ErrNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(r.Method+" "+r.URL.Path, ErrMethod))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	var kerr *KindError
	if errors.As(err, &kerr) {
		msg = kerr.Kind.Error()
	} else if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
