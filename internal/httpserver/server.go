// package httpserver exposes a thin read-only ops surface over the
// orchestrator: health, per-domain migration status, and derived metrics.
// It never mutates anything; apply/rollback stay on the CLI.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/health"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/provider"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/registry"
)

type Server struct {
	reg     *registry.Registry
	prov    provider.Provider
	monitor *health.Monitor
}

// New builds the ops server. monitor may be nil when no audit history or
// inspector is configured; the metrics route then answers 404.
func New(reg *registry.Registry, prov provider.Provider, monitor *health.Monitor) *Server {
	return &Server{reg: reg, prov: prov, monitor: monitor}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/domains", s.handleDomains)
	r.Get("/domains/{name}/status", s.handleStatus)
	r.Get("/domains/{name}/metrics", s.handleMetrics)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.prov.Ping(ctx); err != nil {
		status["ok"] = false
		status["provider"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.reg.Enabled())
}

type domainStatus struct {
	Domain  string   `json:"domain"`
	Applied int      `json:"applied"`
	Pending int      `json:"pending"`
	Next    []string `json:"next,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.reg.Get(name); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	all, err := s.prov.ListAllMigrations(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	applied, err := s.prov.ListAppliedMigrations(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	appliedSet := make(map[string]bool, len(applied))
	for _, m := range applied {
		appliedSet[m] = true
	}
	st := domainStatus{Domain: name, Applied: len(applied)}
	for _, m := range all {
		if !appliedSet[m] {
			st.Pending++
			st.Next = append(st.Next, m)
		}
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		respondError(w, http.StatusNotFound, "metrics not configured")
		return
	}
	name := chi.URLParam(r, "name")
	pm, err := s.monitor.GetPerformanceMetrics(r.Context(), name)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, pm)
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
