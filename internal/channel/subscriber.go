// If you are AI: This file implements the subscriber side of the pub/sub
// channel (C4), grounded on gpublisher.cpp's Subscriber class. It mirrors
// the teacher's internal/core/bus/subscriber.go in spirit (an id, a handle
// onto delivery state, a destructor-equivalent Close) but the delivery
// state here is a shared-memory slot rather than an in-process ring buffer.

package channel

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"videopipe/internal/sema"
	"videopipe/internal/shmem"
)

// SocketPath returns the filesystem path a subscriber to channel name
// binds its notification socket at, per spec.md §6
// ("<prefix>.<pid> where <prefix> defaults to /tmp/<osname(<name>)>").
func SocketPath(name string, pid int) string {
	return fmt.Sprintf("%s.%d", filepath.Join(os.TempDir(), shmem.OSName(name)), pid)
}

// Subscriber attaches to an existing channel and receives frames published
// to it. See spec.md §4.4.
type Subscriber struct {
	name       string
	control    *shmem.Segment
	data       *shmem.Segment
	mu         *sema.Semaphore
	slotIndex  int
	sockFD     int
	sockPath   string
}

// NewSubscriber attaches to channel name: maps the control segment,
// binds a datagram socket, and claims a free slot under the mutex. It
// fails with ErrNoSlot if all Slots seats are occupied.
func NewSubscriber(name string) (*Subscriber, error) {
	control, err := shmem.OpenExisting(name)
	if err != nil {
		return nil, translateShmemErr(err)
	}
	if control.Size() != ControlSize {
		control.Close()
		return nil, fmt.Errorf("%w: %s has size %d, want %d", ErrResourceMismatch, name, control.Size(), ControlSize)
	}
	ctrl := castControl(control.Bytes())
	mu, err := sema.Open(&ctrl.mutex)
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("channel[%s]: open mutex: %w", name, err)
	}

	sockPath := SocketPath(name, os.Getpid())
	fd, err := bindSubscriberSocket(sockPath)
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("channel[%s]: bind subscriber socket: %w", name, err)
	}

	sub := &Subscriber{name: name, control: control, mu: mu, sockFD: fd, sockPath: sockPath, slotIndex: -1}

	mu.Lock()
	idx, ok := claimFreeSlot(ctrl)
	if ok {
		s := &ctrl.slots[idx]
		s.inUse = 1
		s.failed = 0
		s.subscriberPid = int32(os.Getpid())
		s.lastSeq = 0
		s.setPath(sockPath)
	}
	mu.Unlock()

	if !ok {
		unix.Close(fd)
		os.Remove(sockPath)
		control.Close()
		return nil, ErrNoSlot
	}
	sub.slotIndex = idx
	return sub, nil
}

func claimFreeSlot(ctrl *controlHeader) (int, bool) {
	for i := range ctrl.slots {
		if ctrl.slots[i].free() {
			return i, true
		}
	}
	return 0, false
}

func bindSubscriberSocket(path string) (int, error) {
	os.Remove(path) // stale socket from a crashed prior instance
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Receive implements spec.md §4.4's receive(peek) operation. ok is false
// (with a nil error) on end-of-stream, per spec.md §7's propagation policy
// ("peer-gone is not an error").
func (s *Subscriber) Receive(peek bool) (msg Message, ok bool, err error) {
	ctrl := castControl(s.control.Bytes())
	if ctrl.magic != magicLive {
		return Message{}, false, nil
	}

	if !peek {
		if err := s.drainOrBlock(); err != nil {
			return Message{}, false, fmt.Errorf("channel[%s]: recv: %w", s.name, err)
		}
	}

	if ctrl.magic != magicLive {
		return Message{}, false, nil
	}

	if s.data == nil {
		data, err := shmem.OpenExisting(s.name + ".d")
		if err != nil {
			// No publish has happened yet; nothing to return.
			return Message{}, true, nil
		}
		s.data = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dh := castData(s.data.Bytes())
	want := DataHeaderSize + int(dh.sizeLimit)
	if want > s.data.Size() {
		if _, err := s.data.Remap(want, true); err != nil {
			return Message{}, false, fmt.Errorf("channel[%s]: remap data segment: %w", s.name, err)
		}
		dh = castData(s.data.Bytes())
	}

	slotSeq := ctrl.slots[s.slotIndex].lastSeq
	if !peek && slotSeq == ctrl.seq {
		return Message{}, true, nil // nothing new
	}

	payload := make([]byte, dh.payloadLen)
	copy(payload, dataPayload(s.data.Bytes())[:dh.payloadLen])
	typeStr := cstr(dh.typeStr[:])
	ts := time.Unix(dh.tsSec, dh.tsUsec*1000)

	if !peek {
		ctrl.slots[s.slotIndex].lastSeq = ctrl.seq
	}

	return Message{Payload: payload, Type: typeStr, Timestamp: ts}, true, nil
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// drainOrBlock implements spec.md §4.4 step 2: drain pending datagrams
// non-blocking, and if none were pending, do one blocking recv.
func (s *Subscriber) drainOrBlock() error {
	buf := make([]byte, 1)
	drained := 0
	for {
		_, _, err := unix.Recvfrom(s.sockFD, buf, unix.MSG_DONTWAIT)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			return err
		}
		drained++
	}
	if drained == 0 {
		_, _, err := unix.Recvfrom(s.sockFD, buf, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

// FD returns the subscriber's notification socket descriptor, for
// registration with a host event loop (spec.md §5 "Readiness is surfaced
// to the host event loop via the subscriber socket fd").
func (s *Subscriber) FD() int { return s.sockFD }

// Close is the subscriber destructor from spec.md §3 Lifecycles: it clears
// in_use (leaving socket_path/fd intact for the publisher's scavenge) and
// closes the local socket.
func (s *Subscriber) Close() error {
	ctrl := castControl(s.control.Bytes())
	s.mu.Lock()
	if s.slotIndex >= 0 {
		ctrl.slots[s.slotIndex].inUse = 0
	}
	s.mu.Unlock()

	unix.Close(s.sockFD)
	os.Remove(s.sockPath)
	if s.data != nil {
		s.data.Close()
	}
	s.control.Close()
	return nil
}
