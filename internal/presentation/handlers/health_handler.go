package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker defines the interface for health checking components
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SessionCounter reports how many identities are connected
type SessionCounter interface {
	Count() int
}

// HealthHandler handles health check requests. The journal and cache are
// optional; when either is unreachable the service keeps running degraded.
type HealthHandler struct {
	journal  HealthChecker
	cache    HealthChecker
	sessions SessionCounter
}

// NewHealthHandler creates a new health handler. journal and cache may be nil.
func NewHealthHandler(journal, cache HealthChecker, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{
		journal:  journal,
		cache:    cache,
		sessions: sessions,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string            `json:"status"`
	Timestamp      string            `json:"timestamp"`
	ActiveSessions int               `json:"activeSessions"`
	Services       map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}
	if h.sessions != nil {
		response.ActiveSessions = h.sessions.Count()
	}

	check := func(name string, checker HealthChecker) {
		if checker == nil {
			response.Services[name] = "disabled"
			return
		}
		if err := checker.HealthCheck(ctx); err != nil {
			response.Status = "degraded"
			response.Services[name] = "unhealthy: " + err.Error()
			return
		}
		response.Services[name] = "healthy"
	}
	check("journal", h.journal)
	check("cache", h.cache)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// Ready handles GET /ready (Kubernetes readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.journal != nil {
		if err := h.journal.HealthCheck(ctx); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Live handles GET /live (Kubernetes liveness probe)
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
