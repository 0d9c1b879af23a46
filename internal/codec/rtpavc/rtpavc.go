// If you are AI: This file implements the RTP/H.264 depacketizer (C6.4,
// RFC 6184), grounded on gvrtpavcpacket.cpp's RtpAvcPacket (type/nri/
// payloadOffset/payloadFirst/fu_start/fu_end/fu_type/valid/reason) for the
// single-packet view, and on spec.md §4.6.4 for the FU-A reassembly rules
// gvrtpavcpacket.cpp itself leaves to its caller (gvrtppacketstream.cpp,
// not read in depth here; the assembly state machine below is written
// directly from the spec text).

package rtpavc

import "fmt"

const (
	singleNALUMin = 1
	singleNALUMax = 23
	stapA         = 24
	stapB         = 25
	mtap16        = 26
	mtap24        = 27
	fuA           = 28
	fuB           = 29
)

// startCode is the 4-byte Annex-B start code prepended to every committed
// NALU, per spec.md §4.6.4.
var startCode = []byte{0, 0, 0, 1}

// Packet is one RTP-AVC packet view, grounded on RtpAvcPacket.
type Packet struct {
	data []byte
}

// NewPacket wraps an RTP payload (at least 2 bytes: the NALU/FU-indicator
// header byte plus one byte of payload or FU header).
func NewPacket(data []byte) Packet {
	return Packet{data: data}
}

func (p Packet) Type() int { return int(p.data[0] & 0x1f) }
func (p Packet) NRI() int  { return int(p.data[0]>>5) & 3 }

func (p Packet) isSingle() bool {
	t := p.Type()
	return t >= singleNALUMin && t <= singleNALUMax
}
func (p Packet) isFU() bool { t := p.Type(); return t == fuA || t == fuB }

func (p Packet) fuStart() bool { return p.data[1]&0x80 != 0 }
func (p Packet) fuEnd() bool   { return p.data[1]&0x40 != 0 }
func (p Packet) fuType() int   { return int(p.data[1] & 0x1f) }

// Reason returns why the packet is invalid, or "" if it is valid, mirroring
// RtpAvcPacket::reason().
func (p Packet) Reason() string {
	if len(p.data) < 2 {
		return "packet too small"
	}
	if p.Type() == fuB && len(p.data) < 4 {
		return "packet too small"
	}
	if p.data[0]&0x80 != 0 {
		return "top bit of nalu header byte is set"
	}
	if p.Type() == 0 {
		return "nalu header byte is zero"
	}
	if p.isFU() && p.fuStart() && p.fuEnd() {
		return "conflicting fragmentation flags"
	}
	if p.isAggregation() {
		return "aggregation packets are not implemented"
	}
	if !p.isSingle() && !p.isFU() {
		return "unsupported RTP-AVC packet type"
	}
	return ""
}

func (p Packet) isAggregation() bool {
	switch p.Type() {
	case stapA, stapB, mtap16, mtap24:
		return true
	}
	return false
}

func (p Packet) Valid() bool { return p.Reason() == "" }

// payloadFirst reconstructs the NALU header byte for an FU-A start
// fragment by merging the FU-indicator's NRI bits with the FU-header's
// type bits, per RtpAvcPacket::payloadFirst().
func (p Packet) payloadFirst() byte {
	if p.isFU() && p.fuStart() {
		return (p.data[0] & 0xe0) | (p.data[1] & 0x1f)
	}
	return p.data[p.payloadOffset()]
}

func (p Packet) payloadOffset() int {
	switch {
	case p.Type() == fuA:
		if p.fuStart() {
			return 1
		}
		return 2
	case p.Type() == fuB:
		if p.fuStart() {
			return 3
		}
		return 4
	default:
		return 0
	}
}

func (p Packet) payload() []byte {
	return p.data[p.payloadOffset():]
}

// Reassembler accumulates FU-A fragments into complete NALUs keyed on
// RTP timestamp, and passes single-NALU packets through unchanged.
//
// Allocation: a fresh reassembly buffer is allocated at each start
// fragment; reset drops it rather than keeping it for reuse.
type Reassembler struct {
	active    bool
	timestamp uint32
	firstSeq  uint16
	lastSeq   uint16
	buf       []byte
}

// Commit is returned when a complete NALU (single or reassembled) is ready.
type Commit struct {
	NALU      []byte // Annex-B framed: 4-byte start code + NALU bytes
	Timestamp uint32
}

// Push feeds one RTP packet (already stripped of the RTP common header) at
// the given timestamp/sequence number. It returns a Commit when a NALU is
// complete, per spec.md §4.6.4's assembly rules.
func (r *Reassembler) Push(timestamp uint32, seq uint16, data []byte) (Commit, bool, error) {
	if len(data) < 2 {
		return Commit{}, false, fmt.Errorf("rtpavc: packet too small")
	}
	p := NewPacket(data)
	if !p.Valid() {
		return Commit{}, false, fmt.Errorf("rtpavc: %s", p.Reason())
	}

	if p.isSingle() {
		nalu := append(append([]byte{}, startCode...), p.data...)
		return Commit{NALU: nalu, Timestamp: timestamp}, true, nil
	}

	// FU-A.
	if p.fuStart() {
		r.active = true
		r.timestamp = timestamp
		r.firstSeq = seq
		r.lastSeq = seq
		r.buf = append([]byte{}, startCode...)
		r.buf = append(r.buf, p.payloadFirst())
		r.buf = append(r.buf, p.payload()[1:]...)
	} else {
		if !r.active || timestamp != r.timestamp || seq != r.lastSeq+1 {
			r.reset()
			return Commit{}, false, fmt.Errorf("rtpavc: discontinuous FU-A fragment")
		}
		r.lastSeq = seq
		r.buf = append(r.buf, p.payload()...)
	}

	if p.fuEnd() {
		if !r.active {
			return Commit{}, false, fmt.Errorf("rtpavc: FU-A end with no active fragment")
		}
		commit := Commit{NALU: r.buf, Timestamp: r.timestamp}
		r.reset()
		return commit, true, nil
	}
	return Commit{}, false, nil
}

func (r *Reassembler) reset() {
	r.active = false
	r.buf = nil
}
