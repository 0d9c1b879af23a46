// If you are AI: This file implements pull relay (A7): dial a remote
// relay peer, read relay-framed frames from it, and republish
// them onto a local channel. Grounded on the teacher's pull.go
// connect/reconnect loop shape, with RTMP play/session handling replaced
// by the plain frame reader.

package relay

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"videopipe/internal/channel"
	"videopipe/internal/registry"
)

// PullTask dials a remote relay and republishes what it sends onto a
// local channel, creating that channel's publisher when Start begins,
// before the first dial.
type PullTask struct {
	*BaseTask
	pub *channel.Publisher
}

// NewPullTask creates a pull relay task for channel, dialing remoteAddr.
func NewPullTask(reg *registry.Registry, channelName, remoteAddr string, reconnect bool) *PullTask {
	return &PullTask{BaseTask: NewBaseTask(reg, channelName, remoteAddr, reconnect)}
}

// Start runs the pull loop until ctx is cancelled or Stop is called.
func (t *PullTask) Start(ctx context.Context) error {
	t.SetRunning(true)
	defer t.SetRunning(false)

	pub, err := channel.NewPublisher(t.Channel(), "relay pull from "+t.RemoteAddr())
	if err != nil {
		return fmt.Errorf("relay pull[%s]: create publisher: %w", t.Channel(), err)
	}
	t.pub = pub
	defer pub.Close()

	if err := t.registry.Register(t.Channel(), pub); err != nil {
		return fmt.Errorf("relay pull[%s]: %w", t.Channel(), err)
	}
	defer t.registry.Remove(t.Channel())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.StopChan():
			return nil
		default:
		}

		conn, err := net.DialTimeout("tcp", t.RemoteAddr(), 5*time.Second)
		if err != nil {
			if !t.waitReconnect(ctx) {
				return fmt.Errorf("relay pull[%s]: dial %s: %w", t.Channel(), t.RemoteAddr(), err)
			}
			continue
		}

		if err := t.republish(ctx, conn); err != nil {
			conn.Close()
			if !t.waitReconnect(ctx) {
				return err
			}
			continue
		}
		conn.Close()
		return nil
	}
}

func (t *PullTask) republish(ctx context.Context, conn net.Conn) error {
	r := bufio.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.StopChan():
			return nil
		default:
		}

		typeStr, payload, err := readFrame(r)
		if err != nil {
			return fmt.Errorf("relay pull[%s]: read frame: %w", t.Channel(), err)
		}
		if err := t.pub.Publish(payload, typeStr); err != nil {
			return fmt.Errorf("relay pull[%s]: publish: %w", t.Channel(), err)
		}
	}
}
