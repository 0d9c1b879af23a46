// If you are AI: This file implements the fat pipe (C5), a one-direction,
// parent-to-one-child variant of the channel using socketpair(AF_UNIX,
// SOCK_DGRAM) plus SCM_RIGHTS ancillary fd-passing, grounded on
// gfatpipe.cpp's FatPipe/FatPipeReceiver classes.

package fatpipe

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"videopipe/internal/sema"
	"videopipe/internal/shmem"
)

const (
	msgData = '.'
	msgEnd  = 'x'
	msgPing = 'p'

	typeStrCap = 60
)

type controlHeader struct {
	magic uint32
	_     [4]byte
	mutex sema.Storage
}

const controlSize = int(unsafe.Sizeof(controlHeader{}))

type dataHeader struct {
	sizeLimit  uint32
	_          [4]byte
	typeStr    [typeStrCap]byte
	tsSec      int64
	tsUsec     int64
	payloadLen uint32
	_          [4]byte
}

const dataHeaderSize = int(unsafe.Sizeof(dataHeader{}))

func castControl(b []byte) *controlHeader { return (*controlHeader)(unsafe.Pointer(&b[0])) }
func castData(b []byte) *dataHeader       { return (*dataHeader)(unsafe.Pointer(&b[0])) }

func growSize(need int) int { return need + need/2 + 10 }

// ErrPeerGone is returned by Receive when the parent has sent an
// end-of-stream byte, per spec.md §7.
var ErrPeerGone = errors.New("fatpipe: peer is gone")

// FatPipe is the parent-side handle: it owns the control segment, the
// write end of the notification socketpair, and the current data segment.
//
// Lock expectations: Send takes mu around the header+payload write, exactly
// as the channel publisher does. Allocation: the data segment is created
// lazily on first Send and replaced (not remapped) whenever the payload
// outgrows it, since a new segment's fd must be handed to the child anyway.
type FatPipe struct {
	control  *shmem.Segment
	mu       *sema.Semaphore
	writeFD  int
	childFD  int
	data     *shmem.Segment
	pendingFD int // fd awaiting SCM_RIGHTS transfer to the child, or -1
}

// New creates the control segment and the socketpair. Call Prepare before
// starting the child process to hand it the inherited descriptors.
func New() (*FatPipe, error) {
	control, err := shmem.CreateAnonymous(controlSize)
	if err != nil {
		return nil, fmt.Errorf("fatpipe: create control segment: %w", err)
	}
	ctrl := castControl(control.Bytes())
	mu, err := sema.Init(&ctrl.mutex)
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("fatpipe: init mutex: %w", err)
	}
	ctrl.magic = 0xdead

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("fatpipe: socketpair: %w", err)
	}

	return &FatPipe{control: control, mu: mu, writeFD: fds[0], childFD: fds[1], pendingFD: -1}, nil
}

// Prepare attaches the control-segment fd and the child's socketpair end to
// cmd.ExtraFiles and returns the two command-line argument strings the
// child should be invoked with (matching spec.md §4.5's "passed to the
// child as command-line strings via shmemfd()/pipefd()"). Go's ExtraFiles
// convention renumbers inherited descriptors starting at 3, so the
// returned strings reflect post-renumbering values, not host fd numbers.
func (f *FatPipe) Prepare(cmd *exec.Cmd) (shmemfdArg, pipefdArg string) {
	cmd.ExtraFiles = append(cmd.ExtraFiles, os.NewFile(uintptr(f.control.FD()), "fatpipe-control"))
	shmemIdx := 3 + len(cmd.ExtraFiles) - 1
	cmd.ExtraFiles = append(cmd.ExtraFiles, os.NewFile(uintptr(f.childFD), "fatpipe-pipe"))
	pipeIdx := 3 + len(cmd.ExtraFiles) - 1
	return fmt.Sprintf("%d", shmemIdx), fmt.Sprintf("%d", pipeIdx)
}

// DoParent closes the read (child) end of the socketpair after fork,
// keeping only the write end, per spec.md §4.5.
func (f *FatPipe) DoParent() error {
	return unix.Close(f.childFD)
}

// Send implements spec.md §4.5's send(payload, type) contract: on first
// call, or whenever payload outgrows the current data segment, allocate a
// new one and stash its fd for ancillary transfer; write the header and
// payload under the mutex; notify with a one-byte message, attaching the
// pending fd as SCM_RIGHTS in the same syscall when present.
func (f *FatPipe) Send(payload []byte, typeStr string) error {
	needNew := f.data == nil || len(payload) > int(castData(f.data.Bytes()).sizeLimit)
	if needNew {
		size := dataHeaderSize + growSize(len(payload))
		seg, err := shmem.CreateAnonymous(size)
		if err != nil {
			return fmt.Errorf("fatpipe: create data segment: %w", err)
		}
		castData(seg.Bytes()).sizeLimit = uint32(growSize(len(payload)))
		f.data = seg
		f.pendingFD = seg.FD()
	}

	f.mu.Lock()
	dh := castData(f.data.Bytes())
	now := time.Now()
	dh.tsSec = now.Unix()
	dh.tsUsec = int64(now.Nanosecond() / 1000)
	for i := range dh.typeStr {
		dh.typeStr[i] = 0
	}
	copy(dh.typeStr[:], typeStr)
	copy(f.data.Bytes()[dataHeaderSize:], payload)
	dh.payloadLen = uint32(len(payload))
	f.mu.Unlock()

	if f.pendingFD != -1 {
		// Per spec.md §9 ("Fd passing over unix sockets"), the byte and the
		// fd travel in one syscall so a crash between them cannot strand
		// the child without a way to find the new segment.
		rights := unix.UnixRights(f.pendingFD)
		n, err := unix.SendmsgN(f.writeFD, []byte{msgData}, rights, nil, 0)
		if err != nil {
			return fmt.Errorf("fatpipe: sendmsg: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("fatpipe: sendmsg: short send (n=%d)", n)
		}
		f.pendingFD = -1
		return nil
	}

	err := unix.Sendto(f.writeFD, []byte{msgData}, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL, nil)
	if err != nil {
		return fmt.Errorf("fatpipe: send: %w", err)
	}
	return nil
}

// Ping sends a non-blocking 'p' byte and reports whether the pipe accepted
// it, per spec.md §4.5; the parent uses this on a 1 Hz timer to detect a
// dead child.
func (f *FatPipe) Ping() bool {
	err := unix.Sendto(f.writeFD, []byte{msgPing}, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL, nil)
	return err == nil
}

// Close is the parent-side destructor: it sends end-of-stream and closes
// its descriptors.
func (f *FatPipe) Close() error {
	unix.Sendto(f.writeFD, []byte{msgEnd}, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL, nil)
	unix.Close(f.writeFD)
	if err := f.mu.Destroy(); err != nil {
		return err
	}
	f.control.Close()
	if f.data != nil {
		f.data.Close()
	}
	return nil
}

// Receiver is the child-side handle, created from the inherited fds named
// by the shmemfd/pipefd command-line arguments.
type Receiver struct {
	control *shmem.Segment
	mu      *sema.Semaphore
	readFD  int
	data    *shmem.Segment
}

// NewReceiver wraps the child's inherited control-segment fd and pipe fd.
func NewReceiver(controlFD, pipeFD int) (*Receiver, error) {
	control, err := shmem.FromFD(controlFD)
	if err != nil {
		return nil, fmt.Errorf("fatpipe: wrap control segment: %w", err)
	}
	ctrl := castControl(control.Bytes())
	mu, err := sema.Open(&ctrl.mutex)
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("fatpipe: open mutex: %w", err)
	}
	return &Receiver{control: control, mu: mu, readFD: pipeFD}, nil
}

// DoChild arranges for the read end to survive exec by clearing its
// close-on-exec flag, per spec.md §4.5. It closes no descriptor: the
// Receiver holds only the read end. Since NewReceiver is constructed
// post-exec from inherited descriptors in this implementation, this
// matters only for any further re-exec the child performs.
func (r *Receiver) DoChild() error {
	_, err := unix.FcntlInt(uintptr(r.readFD), unix.F_SETFD, 0)
	return err
}

// FD returns the notification pipe descriptor for event-loop registration.
func (r *Receiver) FD() int { return r.readFD }

// Message is one frame received over the fat pipe.
type Message struct {
	Payload   []byte
	Type      string
	Timestamp time.Time
}

// Receive implements spec.md §4.5's child-side receive: read one byte; '.'
// consumes a frame, 'x' returns ErrPeerGone, 'p' is ignored (ping). An
// SCM_RIGHTS fd arriving alongside remaps the receiver's data segment.
func (r *Receiver) Receive() (Message, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := unix.Recvmsg(r.readFD, buf, oob, 0)
	if err != nil {
		return Message{}, fmt.Errorf("fatpipe: recvmsg: %w", err)
	}
	if n != 1 {
		return Message{}, fmt.Errorf("fatpipe: recvmsg: short read (n=%d)", n)
	}

	switch buf[0] {
	case msgEnd:
		return Message{}, ErrPeerGone
	case msgPing:
		return Message{}, nil
	case msgData:
		// fall through
	default:
		return Message{}, fmt.Errorf("fatpipe: unknown message byte 0x%02x", buf[0])
	}

	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err == nil {
			for _, cmsg := range cmsgs {
				fds, err := unix.ParseUnixRights(&cmsg)
				if err == nil && len(fds) > 0 {
					if r.data != nil {
						r.data.Close()
					}
					seg, err := shmem.FromFD(fds[0])
					if err == nil {
						r.data = seg
					}
				}
			}
		}
	}

	if r.data == nil {
		return Message{}, fmt.Errorf("fatpipe: data ready but no segment mapped yet")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	dh := castData(r.data.Bytes())
	payload := make([]byte, dh.payloadLen)
	copy(payload, r.data.Bytes()[dataHeaderSize:dataHeaderSize+int(dh.payloadLen)])
	typeStr := cstr(dh.typeStr[:])
	ts := time.Unix(dh.tsSec, dh.tsUsec*1000)
	dh.payloadLen = 0 // at-most-once-per-event semantics, per spec.md §4.5

	return Message{Payload: payload, Type: typeStr, Timestamp: ts}, nil
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Close releases the child-side resources.
func (r *Receiver) Close() error {
	unix.Close(r.readFD)
	if r.data != nil {
		r.data.Close()
	}
	r.control.Close()
	return nil
}
