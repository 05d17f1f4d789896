// Package http exposes the simulation server's admin surface: health, Prometheus
// metrics and the run ledger.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/raysim/internal/logging"
	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the admin routes.
type Server struct {
	Ledger   ports.RunLedger
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Version  string
}

// NewHandler creates the admin router.
//
//	GET /healthz      liveness and version
//	GET /metrics      Prometheus exposition of gatherer
//	GET /runs         run records, newest first (?limit=N)
//	GET /runs/{id}    one run record
func NewHandler(ledger ports.RunLedger, gatherer prometheus.Gatherer, logger *slog.Logger, version string) http.Handler {
	s := &Server{
		Ledger:   ledger,
		Gatherer: gatherer,
		Logger:   logging.OrNop(logger),
		Version:  version,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.Health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Get("/{id}", s.GetRun)
	})
	return r
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.Version})
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Ledger.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		s.Logger.Error("ListRuns failed", "error", err)
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		runs = runs[:min(limit, len(runs))]
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.Ledger.Get(r.Context(), id)
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		s.Logger.Error("GetRun failed", "run", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
