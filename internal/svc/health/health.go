// If you are AI: This file implements the health check endpoint for
// monitoring and integration tests, plus a /metrics endpoint wiring in
// the process-wide prometheus collectors (internal/metrics).

package health

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service provides health check functionality.
type Service struct{}

// New creates a new health service instance.
func New() *Service {
	return &Service{}
}

// RegisterRoutes adds health check routes to the provided mux: /healthz
// returns 200 OK, and /metrics serves the prometheus collectors
// registered via internal/metrics.Register.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// handleHealth responds to health check requests.
// Returns 200 OK to indicate the server is running.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}
