// If you are AI: This file implements the named-channel lifecycle registry
// (A3), adapted from the teacher's internal/core/bus Registry/StreamKey
// (keyed on an app/name pair for RTMP streams) into a single-string channel
// name keyed onto the live *channel.Publisher that owns it, so admin
// surfaces (svc/api) and the RTP server can look up and enumerate the
// channels a process currently publishes without threading that state
// through every caller.

package registry

import (
	"fmt"
	"sync"

	"videopipe/internal/channel"
)

// Registry tracks the channels this process currently publishes.
//
// Lock expectations: mutex-protected for concurrent access, matching the
// teacher's bus.Registry. Allocation: map pre-allocated; growth is one entry
// per configured channel.
type Registry struct {
	mu   sync.RWMutex
	chans map[string]*channel.Publisher
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{chans: make(map[string]*channel.Publisher)}
}

// Register adds a channel's publisher under name. It fails if name is
// already registered, mirroring the teacher's one-publisher-per-stream
// invariant.
func (r *Registry) Register(name string, pub *channel.Publisher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.chans[name]; exists {
		return fmt.Errorf("registry: channel %q already registered", name)
	}
	r.chans[name] = pub
	return nil
}

// Get retrieves a channel's publisher by name, or nil if not registered.
func (r *Registry) Get(name string) *channel.Publisher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chans[name]
}

// Remove drops name from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chans, name)
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chans)
}

// List returns the names of all registered channels.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chans))
	for name := range r.chans {
		names = append(names, name)
	}
	return names
}
