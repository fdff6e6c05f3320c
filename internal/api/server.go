// Package api exposes the HTTP surface: event submission, the review
// workflow over flagged transactions, and aggregate statistics.
package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fraudsight/fraudsight/internal/rules"
	"github.com/fraudsight/fraudsight/internal/scoring"
	"github.com/fraudsight/fraudsight/internal/service"
)

// Server holds the HTTP handlers and their collaborators. The store is the
// source of truth for all reads; the cache backs only the recent-flagged
// shortcut endpoint.
type Server struct {
	store     service.Storage
	cache     service.FlaggedCache
	publisher service.Publisher
	evaluator *rules.Evaluator
	scorer    *scoring.Scorer
	auth      *Authenticator
	validate  *validator.Validate
}

// NewServer wires the handler set.
func NewServer(store service.Storage, cache service.FlaggedCache, publisher service.Publisher, evaluator *rules.Evaluator, scorer *scoring.Scorer, auth *Authenticator) *Server {
	return &Server{
		store:     store,
		cache:     cache,
		publisher: publisher,
		evaluator: evaluator,
		scorer:    scorer,
		auth:      auth,
		validate:  validator.New(),
	}
}

// Router builds the route table. Review and query endpoints sit behind the
// bearer-token middleware; submission, login, health and metrics do not.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", instrument("/health", s.handleHealth)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", instrument("/auth/login", s.handleLogin)).Methods(http.MethodPost)
	r.HandleFunc("/transactions", instrument("/transactions", s.handleSubmit)).Methods(http.MethodPost)

	protected := r.PathPrefix("/fraud").Subrouter()
	protected.Use(s.auth.middleware)
	protected.HandleFunc("/flagged", instrument("/fraud/flagged", s.handleListFlagged)).Methods(http.MethodGet)
	protected.HandleFunc("/recent", instrument("/fraud/recent", s.handleRecentFlagged)).Methods(http.MethodGet)
	protected.HandleFunc("/tx/{id}", instrument("/fraud/tx/{id}", s.handleGetTransaction)).Methods(http.MethodGet)
	protected.HandleFunc("/review/{id}", instrument("/fraud/review/{id}", s.handleReview)).Methods(http.MethodPost)
	protected.HandleFunc("/stats", instrument("/fraud/stats", s.handleStats)).Methods(http.MethodGet)

	return r
}
