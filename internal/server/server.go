// Package server exposes the sampling and summary operations over HTTP
// for interactive use.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/config"
	"github.com/sells-group/geosample/internal/store"
)

// Server wires the sampling engine and the store behind an HTTP API.
type Server struct {
	store    store.Store
	sampling config.SamplingConfig
	summary  config.SummaryConfig
	log      *zap.Logger
}

// New builds a server. The store may be nil, in which case dataset
// references and run persistence are unavailable and requests must carry
// inline records.
func New(st store.Store, cfg *config.Config) *Server {
	s := &Server{
		store: st,
		log:   zap.L().With(zap.String("component", "server")),
	}
	if cfg != nil {
		s.sampling = cfg.Sampling
		s.summary = cfg.Summary
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/cookies", s.handleCookies)
		r.Post("/clustr", s.handleClustr)
		r.Post("/bandit", s.handleBandit)
		r.Post("/summary", s.handleSummary)

		r.Get("/datasets", s.handleListDatasets)
		r.Get("/datasets/{id}", s.handleGetDataset)
		r.Post("/datasets", s.handleCreateDataset)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/summaries", s.handleRunSummaries)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON serializes a response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an error to a JSON error body. Validation errors are the
// caller's fault; missing entities are 404; everything else is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case isBadRequest(err):
		status = http.StatusBadRequest
	case strings.Contains(err.Error(), "not found"):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errStoreRequired = eris.New("server: no store configured; pass inline records or run with a database")
