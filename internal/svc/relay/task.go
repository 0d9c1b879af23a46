// If you are AI: This file defines the relay task interface and base
// implementation (A7), adapted from the teacher's Task/BaseTask (which
// keyed off an RTMP app/stream pair) onto a single channel name, and
// replacing the teacher's fixed 5-second reconnect sleep with a
// golang.org/x/time/rate limiter so reconnect storms against a flapping
// peer are paced rather than hard-coded.

package relay

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"videopipe/internal/registry"
)

// Task represents a relay task (push or pull). Tasks run in their own
// goroutine and manage connection lifecycle, including reconnects.
type Task interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// BaseTask provides the fields and reconnect pacing common to push and
// pull tasks.
type BaseTask struct {
	registry   *registry.Registry
	channel    string
	remoteAddr string
	reconnect  bool
	limiter    *rate.Limiter
	running    bool
	stopChan   chan struct{}
}

// NewBaseTask creates a base task with common configuration. The
// reconnect limiter allows one attempt immediately and one every 5
// seconds thereafter, with a burst of 1 so a flapping peer cannot be
// redialed faster than that regardless of how quickly Start's loop spins.
func NewBaseTask(reg *registry.Registry, channel, remoteAddr string, reconnect bool) *BaseTask {
	return &BaseTask{
		registry:   reg,
		channel:    channel,
		remoteAddr: remoteAddr,
		reconnect:  reconnect,
		limiter:    rate.NewLimiter(rate.Every(5*time.Second), 1),
		stopChan:   make(chan struct{}),
	}
}

func (t *BaseTask) Channel() string              { return t.channel }
func (t *BaseTask) RemoteAddr() string            { return t.remoteAddr }
func (t *BaseTask) Registry() *registry.Registry  { return t.registry }
func (t *BaseTask) IsRunning() bool               { return t.running }
func (t *BaseTask) SetRunning(running bool)       { t.running = running }
func (t *BaseTask) StopChan() <-chan struct{}     { return t.stopChan }

// Stop signals the task to stop.
func (t *BaseTask) Stop() error {
	close(t.stopChan)
	return nil
}

// waitReconnect blocks until the reconnect limiter admits another attempt,
// or returns false if ctx is done or Stop was called first.
func (t *BaseTask) waitReconnect(ctx context.Context) bool {
	if !t.reconnect {
		return false
	}
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return t.limiter.Wait(waitCtx) == nil
}
