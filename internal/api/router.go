package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency probe in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/bridges", func(r chi.Router) {
			r.Get("/", s.handleListBridges)
			r.Get("/{name}/entities", s.handleListEntities)
		})

		r.Get("/areas", s.handleListAreas)
		r.Get("/devices", s.handleListDevices)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Bridges map[string]string `json:"bridges"`
}

// handleHealth probes the database and the MQTT broker. It answers 503
// when either is unhealthy so it can back a container health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Checks:  make(map[string]string, 2),
		Bridges: make(map[string]string, len(s.bridges)),
	}

	if err := s.db.HealthCheck(ctx); err != nil {
		resp.Status = "degraded"
		resp.Checks["database"] = err.Error()
	} else {
		resp.Checks["database"] = "ok"
	}

	if s.mqtt == nil {
		resp.Status = "degraded"
		resp.Checks["mqtt"] = "not configured"
	} else if err := s.mqtt.HealthCheck(ctx); err != nil {
		resp.Status = "degraded"
		resp.Checks["mqtt"] = err.Error()
	} else {
		resp.Checks["mqtt"] = "ok"
	}

	for _, b := range s.bridges {
		m := b.Bridge.GetMetrics()
		resp.Bridges[m.Name] = m.State
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
