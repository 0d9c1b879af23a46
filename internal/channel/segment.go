// If you are AI: This file defines the binary layout of the control and
// data segments shared between a Publisher and its Subscribers (C3/C4), per
// spec.md §3 "Control segment" / "Data segment". All participants are built
// from this same package, so — per spec.md §9's "Placement construction in
// shared memory" note, which sanctions "raw allocator + transmute" — the
// layout is expressed as a plain Go struct and reached via unsafe.Pointer
// over the mmap'd bytes rather than hand-rolled offset arithmetic.

package channel

import (
	"unsafe"

	"videopipe/internal/sema"
)

const (
	// Slots is the fixed number of subscriber seats per channel (spec.md §3).
	Slots = 10
	// magicLive is the control-segment magic value while the publisher is alive.
	magicLive uint32 = 0xdead
	// magicDead marks a deactivated (or not-yet-activated) channel.
	magicDead uint32 = 0

	publisherInfoCap = 2048 // "implementation-defined cap >= 2 KiB"
	typeStrCap       = 60
	errCodeCap       = 4
	socketPathCap    = 108 // matches sockaddr_un's sun_path on Linux

	errNone = int32(0)
)

// slot is one of the fixed Slots seats in a control segment.
type slot struct {
	inUse         uint32
	failed        uint32
	subscriberPid int32
	lastSeq       uint32
	socketFD      int32 // meaningful only to the publisher process; see publisher.go
	errCodes      [errCodeCap]int32
	socketPathLen uint16
	_             [2]byte
	socketPath    [socketPathCap]byte
}

func (s *slot) free() bool { return s.inUse == 0 && s.socketFD == -1 }
func (s *slot) live() bool { return s.inUse != 0 && s.failed == 0 }

func (s *slot) path() string {
	return string(s.socketPath[:s.socketPathLen])
}

func (s *slot) setPath(p string) {
	n := copy(s.socketPath[:], p)
	s.socketPathLen = uint16(n)
}

func (s *slot) recordError(code int32) {
	copy(s.errCodes[:], s.errCodes[1:])
	s.errCodes[errCodeCap-1] = code
}

// controlHeader is the fixed-size control segment, per spec.md §3: magic,
// embedded mutex, publisher pid, publisher-info blob, publication sequence
// number, and the Slots array, in declared order.
type controlHeader struct {
	magic            uint32
	_                [4]byte
	mutex            sema.Storage
	publisherPid     int32
	_                [4]byte
	publisherInfoLen uint32
	publisherInfo    [publisherInfoCap]byte
	seq              uint32
	_                [4]byte
	slots            [Slots]slot
}

func castControl(data []byte) *controlHeader {
	return (*controlHeader)(unsafe.Pointer(&data[0]))
}

// ControlSize is the byte size of the control segment, the size passed to
// shmem.CreateExclusive when a channel is first created.
const ControlSize = int(unsafe.Sizeof(controlHeader{}))

// dataHeader is the fixed-size prefix of the data segment ("<name>.d"), per
// spec.md §3: size_limit, 60-byte type string, wall-clock timestamp, payload
// length. The payload itself follows immediately after the header in the
// mapped bytes.
type dataHeader struct {
	sizeLimit  uint32
	_          [4]byte
	typeStr    [typeStrCap]byte
	tsSec      int64
	tsUsec     int64
	payloadLen uint32
	_          [4]byte
}

// DataHeaderSize is the byte size of the data-segment header.
const DataHeaderSize = int(unsafe.Sizeof(dataHeader{}))

func castData(data []byte) *dataHeader {
	return (*dataHeader)(unsafe.Pointer(&data[0]))
}

func dataPayload(data []byte) []byte {
	return data[DataHeaderSize:]
}

// growSize implements the "morethan" growth formula shared by data-segment
// allocation and remap, per spec.md §3/§4.3: data_total + data_total/2 + 10.
func growSize(need int) int {
	return need + need/2 + 10
}
