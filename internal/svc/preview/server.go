// If you are AI: This file provides HTTP frame-preview service integration,
// grounded on the teacher's internal/svc/httpflv/server.go Service shape.
// The service is integrated into the main HTTP server.

package preview

import "net/http"

// Service provides HTTP single-channel frame-preview streaming.
type Service struct {
	handler *Handler
}

// NewService creates a new preview service. It takes no socket-directory
// setting; its subscribers bind at channel's default socket location.
func NewService() *Service {
	return &Service{handler: NewHandler()}
}

// RegisterRoutes registers preview routes on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
}
