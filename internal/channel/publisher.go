// If you are AI: This file implements the publisher side of the pub/sub
// channel (C3), grounded on gpublisher.cpp's Publisher/PublisherChannel
// classes and on the teacher's internal/core/bus/stream.go fan-out shape
// (snapshot-then-fan-out under a lock, cached init state for late joiners
// generalized here into the lazily-created data segment).

package channel

import (
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"videopipe/internal/metrics"
	"videopipe/internal/sema"
	"videopipe/internal/shmem"
)

// Publisher owns a channel's control and data segments and fans out
// publish() calls to up to Slots subscribers.
//
// Lock expectations: every method that touches the control or data segment
// takes mu (the embedded shared-memory semaphore), matching spec.md §3
// ("The mutex protects every read or write of mutable control-segment
// fields and every read or write of data-segment fields other than magic").
// Allocation: the data segment is created lazily on first Publish and
// remapped in place thereafter; the control segment is fixed-size.
type Publisher struct {
	name    string
	control *shmem.Segment
	data    *shmem.Segment
	mu      *sema.Semaphore
	log     *log.Logger
}

// NewPublisher creates a channel's control segment exclusively. It
// registers no signal-time cleanup: the channel's shared-memory names are
// removed only by Close. info is the bounded "publisher info" blob
// (spec.md §3), truncated to its capacity.
func NewPublisher(name, info string) (*Publisher, error) {
	if err := shmem.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	control, err := shmem.CreateExclusive(name, ControlSize)
	if err != nil {
		return nil, translateShmemErr(err)
	}
	ctrl := castControl(control.Bytes())
	mu, err := sema.Init(&ctrl.mutex)
	if err != nil {
		control.Unlink()
		control.Close()
		return nil, fmt.Errorf("channel: init mutex for %s: %w", name, err)
	}
	ctrl.publisherPid = int32(os.Getpid())
	n := copy(ctrl.publisherInfo[:], info)
	ctrl.publisherInfoLen = uint32(n)
	for i := range ctrl.slots {
		ctrl.slots[i].socketFD = -1
	}
	ctrl.magic = magicLive

	if err := shmem.CreatePlaceholder(name); err != nil {
		log.Printf("channel[%s]: placeholder create failed: %v", name, err)
	}

	return &Publisher{
		name:    name,
		control: control,
		mu:      mu,
		log:     log.New(os.Stderr, fmt.Sprintf("channel[%s] ", name), log.LstdFlags),
	}, nil
}

func translateShmemErr(err error) error {
	switch {
	case errIs(err, shmem.ErrExists):
		return fmt.Errorf("%w: %v", ErrResourceExists, err)
	case errIs(err, shmem.ErrMissing):
		return fmt.Errorf("%w: %v", ErrResourceMissing, err)
	default:
		return err
	}
}

func errIs(err, target error) bool {
	for e := err; e != nil; {
		if e == target {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// Publish implements spec.md §4.3's publish(payload, type_str) contract.
func (p *Publisher) Publish(payload []byte, typeStr string) error {
	if p.data == nil {
		size := DataHeaderSize + growSize(len(payload))
		data, err := shmem.CreateExclusive(p.name+".d", size)
		if err != nil {
			return fmt.Errorf("channel[%s]: create data segment: %w", p.name, err)
		}
		castData(data.Bytes()).sizeLimit = uint32(growSize(len(payload)))
		p.data = data
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctrl := castControl(p.control.Bytes())
	dh := castData(p.data.Bytes())

	if len(payload) > int(dh.sizeLimit) {
		newLimit := growSize(len(payload))
		ok, err := p.data.Remap(DataHeaderSize+newLimit, true)
		if err != nil {
			return fmt.Errorf("channel[%s]: remap data segment: %w", p.name, err)
		}
		if !ok {
			return fmt.Errorf("channel[%s]: remap data segment: kernel refused to extend", p.name)
		}
		dh = castData(p.data.Bytes())
		dh.sizeLimit = uint32(newLimit)
	}

	ctrl.seq++
	if ctrl.seq == 0 {
		ctrl.seq = 1 // skip zero on wrap, per spec.md §3
	}

	now := time.Now()
	dh.tsSec = now.Unix()
	dh.tsUsec = int64(now.Nanosecond() / 1000)

	for i := range dh.typeStr {
		dh.typeStr[i] = 0
	}
	copy(dh.typeStr[:], typeStr)
	copy(dataPayload(p.data.Bytes()), payload)
	dh.payloadLen = uint32(len(payload))

	p.notifyAll(ctrl)
	p.scavenge(ctrl)

	metrics.FramesPublished.WithLabelValues(p.name).Inc()
	return nil
}

// notifyAll implements step 3 of spec.md §4.3: best-effort, non-blocking
// wake-up of every live slot, with per-slot failure capture.
func (p *Publisher) notifyAll(ctrl *controlHeader) {
	for i := range ctrl.slots {
		s := &ctrl.slots[i]
		if !s.live() {
			continue
		}
		if s.socketFD == -1 {
			fd, err := dialSubscriberSocket(s.path())
			if err != nil {
				s.recordError(int32(errnoOf(err)))
				s.failed = 1
				metrics.SlotFailures.WithLabelValues(p.name).Inc()
				continue
			}
			s.socketFD = int32(fd)
			unix.Unlink(s.path()) // only transiently visible, per spec.md §4.3 step 3
		}
		err := unix.Sendto(int(s.socketFD), []byte{'.'}, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL, nil)
		if err != nil {
			s.recordError(int32(errnoOf(err)))
			s.failed = 1
			metrics.SlotFailures.WithLabelValues(p.name).Inc()
			unix.Close(int(s.socketFD))
			s.socketFD = -1
		}
	}
}

// scavenge implements step 4 of spec.md §4.3: reclaim fds of slots whose
// subscriber has detached (in_use cleared) since the last publish.
func (p *Publisher) scavenge(ctrl *controlHeader) {
	for i := range ctrl.slots {
		s := &ctrl.slots[i]
		if s.inUse == 0 && s.socketFD != -1 {
			unix.Close(int(s.socketFD))
			*s = slot{socketFD: -1}
		}
	}
}

func dialSubscriberSocket(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func errnoOf(err error) int {
	if errno, ok := err.(unix.Errno); ok {
		return int(errno)
	}
	return -1
}

// Purge forcibly frees an orphaned (in_use && failed) slot, per spec.md
// §4.3 ("Orphaned slots are never forcibly reused — that is an operator
// decision, exposed via purge()").
func (p *Publisher) Purge(slotIndex int) error {
	if slotIndex < 0 || slotIndex >= Slots {
		return fmt.Errorf("channel[%s]: slot index out of range", p.name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ctrl := castControl(p.control.Bytes())
	s := &ctrl.slots[slotIndex]
	if s.socketFD != -1 {
		unix.Close(int(s.socketFD))
	}
	*s = slot{socketFD: -1}
	return nil
}

// Close is the publisher destructor from spec.md §3 Lifecycles: set
// magic=0, notify all live slots one last time so receive() observes
// end-of-stream, close every publisher-side fd, then unlink both segments.
func (p *Publisher) Close() error {
	ctrl := castControl(p.control.Bytes())

	p.mu.Lock()
	ctrl.magic = magicDead
	p.notifyAll(ctrl)
	for i := range ctrl.slots {
		s := &ctrl.slots[i]
		if s.socketFD != -1 {
			unix.Close(int(s.socketFD))
			s.socketFD = -1
		}
	}
	p.mu.Unlock()

	if err := p.mu.Destroy(); err != nil {
		p.log.Printf("destroy mutex: %v", err)
	}

	if err := p.control.Unlink(); err != nil {
		p.log.Printf("unlink control segment: %v", err)
	}
	p.control.Close()

	if p.data != nil {
		if err := p.data.Unlink(); err != nil {
			p.log.Printf("unlink data segment: %v", err)
		}
		p.data.Close()
	}

	shmem.RemovePlaceholder(p.name)
	return nil
}
