package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const healthCheckTimeout = 5 * time.Second

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check CheckFunc
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks  []namedCheck
	version string
}

// NewHealthChecker creates a new health checker reporting version on /version
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version}
}

// Register adds a dependency to the extended check. A nil check is reported
// as not configured and does not make the service unhealthy.
func (h *HealthChecker) Register(name string, check CheckFunc) *HealthChecker {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
	return h
}

// RegisterRoutes registers health and version routes on the root router
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/health", h.Liveness).Methods("GET")
	r.HandleFunc("/version", h.Version).Methods("GET")
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. With ?mode=extended every
// registered dependency is probed and any failure answers 503.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.checks))
		for _, c := range h.checks {
			if c.check == nil {
				response.Checks[c.name] = "not configured"
				continue
			}
			if err := probe(r.Context(), c.check); err != nil {
				response.Status = "unhealthy"
				response.Checks[c.name] = "unhealthy: " + clientMessage(err.Error())
				continue
			}
			response.Checks[c.name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeHealthJSON(w, statusCode, response)
}

// Liveness handles the legacy /health endpoint
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Version reports the running build
func (h *HealthChecker) Version(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func probe(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return check(ctx)
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
