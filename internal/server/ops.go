// Package server exposes the operational HTTP interface: health probes,
// Prometheus metrics, and the latest run report.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voyantlabs/advisory-pipeline/internal/metrics"
	"github.com/voyantlabs/advisory-pipeline/internal/report"
)

// Server wires the ops endpoints onto a chi router.
type Server struct {
	router chi.Router
	logger *zap.Logger

	mu      sync.RWMutex
	lastRep *report.RunReport
}

// New constructs a Server with middleware and routes.
func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/v1/runs/latest", s.latestRun)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish records the latest run report so it can be served. Server satisfies
// report.Sink and is wired into the report fanout.
func (s *Server) Publish(_ context.Context, rep report.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRep = &rep
	return nil
}

// Close implements report.Sink; it performs no action.
func (s *Server) Close(context.Context) error {
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep := s.lastRep
	s.mu.RUnlock()
	if rep == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed runs yet"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("handler panic", zap.Any("panic", rec))
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
