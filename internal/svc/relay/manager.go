// If you are AI: This file implements the relay manager (A7): it starts
// and stops every relay task declared in configuration, adapted from the
// teacher's manager.go onto videopipe's single-channel-name task
// constructors and the channel-named registry.Registry.

package relay

import (
	"context"
	"fmt"
	"sync"

	"videopipe/internal/config"
	"videopipe/internal/registry"
)

// TaskInfo is a read-only snapshot of one relay task, used by
// administrative surfaces (internal/svc/api) that need to report relay
// state without holding a reference to the task itself.
type TaskInfo struct {
	Channel    string
	Mode       string
	RemoteAddr string
	Running    bool
}

// Manager owns the lifecycle of every configured relay task.
type Manager struct {
	registry *registry.Registry
	tasks    []Task
	cfgs     []config.RelayConfig
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// NewManager creates a relay manager backed by reg, the process's
// channel registry (A3).
func NewManager(reg *registry.Registry) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{registry: reg, ctx: ctx, cancel: cancel}
}

// StartTasks launches one goroutine per relay declared in cfg.
func (m *Manager) StartTasks(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rc := range cfg.Relays {
		var task Task
		switch rc.Mode {
		case "push":
			task = NewPushTask(m.registry, rc.Channel, rc.RemoteAddr, rc.Reconnect)
		case "pull":
			task = NewPullTask(m.registry, rc.Channel, rc.RemoteAddr, rc.Reconnect)
		default:
			return fmt.Errorf("relay manager: unknown mode %q for channel %q", rc.Mode, rc.Channel)
		}

		m.tasks = append(m.tasks, task)
		m.cfgs = append(m.cfgs, rc)
		m.wg.Add(1)
		go func(t Task) {
			defer m.wg.Done()
			t.Start(m.ctx)
		}(task)
	}

	return nil
}

// Stop cancels every relay task and waits for them to exit.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.cancel()
	for _, task := range m.tasks {
		task.Stop()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	<-done
	return nil
}

// TaskCount returns the number of relay tasks StartTasks has launched,
// whether or not they are still running.
func (m *Manager) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Tasks returns a snapshot of every relay task's configuration and
// current running state.
func (m *Manager) Tasks() []TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]TaskInfo, len(m.tasks))
	for i, task := range m.tasks {
		infos[i] = TaskInfo{
			Channel:    m.cfgs[i].Channel,
			Mode:       m.cfgs[i].Mode,
			RemoteAddr: m.cfgs[i].RemoteAddr,
			Running:    task.IsRunning(),
		}
	}
	return infos
}
