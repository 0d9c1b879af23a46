// If you are AI: This file provides WebSocket frame-preview service
// integration, grounded on the teacher's internal/svc/wsflv/server.go
// Service shape.

package wspreview

import "net/http"

// Service provides WebSocket single-channel frame-preview streaming.
type Service struct {
	handler *Handler
}

// NewService creates a new WebSocket preview service.
func NewService() *Service {
	return &Service{handler: NewHandler()}
}

// RegisterRoutes registers WebSocket preview routes on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
}
