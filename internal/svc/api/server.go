// If you are AI: This file provides the administrative HTTP API: server
// state, the active channel registry, and configured relay tasks. Adapted
// from the teacher's api/server.go (which exposed RTMP stream/relay info)
// onto videopipe's channel registry (A3) and relay manager (A7).

package api

import (
	"time"

	"videopipe/internal/registry"
	"videopipe/internal/svc/relay"
)

// Service provides HTTP API functionality.
type Service struct {
	registry  *registry.Registry
	relayMgr  *relay.Manager
	startTime int64
}

// NewService creates a new API service.
func NewService(reg *registry.Registry, relayMgr *relay.Manager) *Service {
	return &Service{
		registry:  reg,
		relayMgr:  relayMgr,
		startTime: getCurrentTime(),
	}
}

// getCurrentTime returns current Unix timestamp. Extracted for
// testability.
func getCurrentTime() int64 {
	return time.Now().Unix()
}
