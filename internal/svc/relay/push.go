// If you are AI: This file implements push relay (A7): subscribe to a
// local channel, dial a remote relay peer, and forward every
// received frame to it using the relay wire framing. Grounded on the
// teacher's push.go connect/reconnect loop shape, with the RTMP
// handshake/session machinery replaced by the plain frame writer since
// there is no RTMP peer on the other end.

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

// PushTask subscribes to a local channel and forwards its frames to a
// remote relay over TCP.
type PushTask struct {
	*BaseTask
}

// NewPushTask creates a push relay task for channel, dialing remoteAddr.
func NewPushTask(reg *registry.Registry, channelName, remoteAddr string, reconnect bool) *PushTask {
	return &PushTask{BaseTask: NewBaseTask(reg, channelName, remoteAddr, reconnect)}
}

// Start runs the push loop until ctx is cancelled or Stop is called.
func (t *PushTask) Start(ctx context.Context) error {
	t.SetRunning(true)
	defer t.SetRunning(false)

	sub, err := channel.NewSubscriber(t.Channel())
	if err != nil {
		return fmt.Errorf("relay push[%s]: subscribe: %w", t.Channel(), err)
	}
	defer sub.Close()

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
				return fmt.Errorf("relay push[%s]: dial %s: %w", t.Channel(), t.RemoteAddr(), err)
			}
			continue
		}

		if err := t.forward(ctx, sub, conn); err != nil {
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

func (t *PushTask) forward(ctx context.Context, sub *channel.Subscriber, conn net.Conn) error {
	w := bufio.NewWriter(conn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.StopChan():
			return nil
		default:
		}

		msg, ok, err := sub.Receive(false)
		if err != nil {
			return fmt.Errorf("relay push[%s]: receive: %w", t.Channel(), err)
		}
		if !ok {
			return fmt.Errorf("relay push[%s]: local publisher went away", t.Channel())
		}
		if len(msg.Payload) == 0 {
			continue
		}
		if err := writeFrame(w, msg.Type, msg.Payload); err != nil {
			return fmt.Errorf("relay push[%s]: write frame: %w", t.Channel(), err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("relay push[%s]: flush: %w", t.Channel(), err)
		}
	}
}
