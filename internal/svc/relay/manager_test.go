// If you are AI: This file contains unit tests for the relay manager.
// Tests verify task creation and lifecycle management.

package relay

import (
	"testing"
	"time"

	"videopipe/internal/config"
	"videopipe/internal/registry"
)

func TestManagerStartTasks(t *testing.T) {
	reg := registry.New()
	manager := NewManager(reg)

	cfg := &config.Config{
		Relays: []config.RelayConfig{
			{
				Channel:    "frontdoor",
				Mode:       "pull",
				RemoteAddr: "127.0.0.1:1",
				Reconnect:  false,
			},
		},
	}

	if err := manager.StartTasks(cfg); err != nil {
		t.Fatalf("StartTasks: %v", err)
	}
	if manager.TaskCount() != 1 {
		t.Errorf("TaskCount = %d, want 1", manager.TaskCount())
	}
	manager.Stop()
}

func TestManagerRejectsUnknownMode(t *testing.T) {
	reg := registry.New()
	manager := NewManager(reg)

	cfg := &config.Config{
		Relays: []config.RelayConfig{
			{Channel: "frontdoor", Mode: "invalid", RemoteAddr: "127.0.0.1:1"},
		},
	}

	if err := manager.StartTasks(cfg); err == nil {
		t.Error("expected an error for an unrecognized relay mode")
	}
}

func TestManagerStop(t *testing.T) {
	reg := registry.New()
	manager := NewManager(reg)

	cfg := &config.Config{
		Relays: []config.RelayConfig{
			{Channel: "frontdoor", Mode: "pull", RemoteAddr: "127.0.0.1:1", Reconnect: false},
		},
	}

	if err := manager.StartTasks(cfg); err != nil {
		t.Fatalf("StartTasks: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	done := make(chan bool, 1)
	go func() {
		manager.Stop()
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Manager.Stop timed out")
	}
}
