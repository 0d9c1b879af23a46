// If you are AI: This file implements the RTP/JPEG depacketizer (C6.3,
// RFC 2435), grounded on gvrtpjpegpacket.cpp's Main Header parsing and
// reassembly-buffer-keyed-on-timestamp logic.

package rtpjpeg

import "fmt"

// ErrUnsupported is returned for in-band quantization tables, which
// spec.md §4.6.3 explicitly rejects as unsupported.
var ErrUnsupported = fmt.Errorf("rtpjpeg: in-band quantization tables are not supported")

// mainHeader is the RFC 2435 per-packet JPEG header.
type mainHeader struct {
	typeSpecific    byte
	fragmentOffset  uint32
	jpegType        byte
	q               byte
	width           int // in pixels (header carries width/8)
	height          int
	restartInterval uint16 // 0 if no Restart Marker Header
	payload         []byte
}

func parseMainHeader(data []byte) (mainHeader, error) {
	if len(data) < 8 {
		return mainHeader{}, fmt.Errorf("rtpjpeg: packet too small for main header")
	}
	h := mainHeader{
		typeSpecific:   data[0],
		fragmentOffset: uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]),
		jpegType:       data[4],
		q:              data[5],
		width:          int(data[6]) * 8,
		height:         int(data[7]) * 8,
	}
	off := 8

	if h.jpegType >= 64 && h.jpegType <= 127 {
		if len(data) < off+4 {
			return mainHeader{}, fmt.Errorf("rtpjpeg: packet too small for restart marker header")
		}
		h.restartInterval = uint16(data[off])<<8 | uint16(data[off+1])
		off += 4
	}

	if h.q >= 128 && h.fragmentOffset == 0 {
		return mainHeader{}, ErrUnsupported
	}

	if h.jpegType != 0 && h.jpegType != 1 {
		return mainHeader{}, fmt.Errorf("rtpjpeg: unsupported type %d", h.jpegType)
	}

	h.payload = data[off:]
	return h, nil
}

// Frame is a reassembled JPEG ready to hand to a JPEG decoder.
type Frame struct {
	JPEG      []byte
	Width     int
	Height    int
	Timestamp uint32
}

// Depacketizer reassembles a sequence of RTP/JPEG packets into complete
// JFIF JPEG images.
//
// Allocation: one entropy-data buffer, reused across frames.
type Depacketizer struct {
	active        bool
	timestamp     uint32
	firstSeq      uint16
	lastSeq       uint16
	fragmentCount uint32
	header        mainHeader
	entropy       []byte
	onWarning     func(string)
}

// SetWarningFunc installs a callback for non-fatal reassembly mismatches
// (spec.md §4.6.3: "Mismatches discard the in-progress frame with a
// warning").
func (d *Depacketizer) SetWarningFunc(fn func(string)) { d.onWarning = fn }

func (d *Depacketizer) warn(format string, args ...any) {
	if d.onWarning != nil {
		d.onWarning(fmt.Sprintf(format, args...))
	}
}

// Push feeds one RTP/JPEG payload (the RTP payload with the common RTP
// header already stripped) at the given timestamp/sequence number/marker
// bit. It returns a Frame when the marker bit commits a contiguous run of
// fragments.
func (d *Depacketizer) Push(timestamp uint32, seq uint16, marker bool, payload []byte) (Frame, bool, error) {
	h, err := parseMainHeader(payload)
	if err != nil {
		if h.fragmentOffset == 0 {
			d.reset()
		}
		return Frame{}, false, err
	}

	if h.fragmentOffset == 0 {
		d.active = true
		d.timestamp = timestamp
		d.firstSeq = seq
		d.lastSeq = seq
		d.fragmentCount = 1
		d.header = h
		d.entropy = append(d.entropy[:0], h.payload...)
	} else {
		if !d.active || timestamp != d.timestamp || int(h.fragmentOffset) != len(d.entropy) {
			d.warn("rtpjpeg: discarding in-progress frame: fragment mismatch at seq %d", seq)
			d.reset()
			return Frame{}, false, fmt.Errorf("rtpjpeg: fragment offset/timestamp mismatch")
		}
		if seq != d.lastSeq+1 {
			d.warn("rtpjpeg: discarding in-progress frame: sequence gap at seq %d", seq)
			d.reset()
			return Frame{}, false, fmt.Errorf("rtpjpeg: sequence gap")
		}
		d.lastSeq = seq
		d.fragmentCount++
		d.entropy = append(d.entropy, h.payload...)
	}

	if !marker {
		return Frame{}, false, nil
	}

	// Marker bit: commit if every sequence number from first to last was
	// seen contiguously, per spec.md §4.6.3: the span lastSeq-firstSeq+1
	// must equal the number of fragments received. The subtraction is done
	// in uint16, so a run that wraps through 0 still gives the right span.
	expectedCount := uint32(d.lastSeq-d.firstSeq) + 1
	if expectedCount != d.fragmentCount {
		d.warn("rtpjpeg: discarding frame: non-contiguous sequence run")
		d.reset()
		return Frame{}, false, fmt.Errorf("rtpjpeg: non-contiguous sequence run")
	}

	jfif := makeHeaders(d.header.width, d.header.height, d.header.jpegType, int(d.header.q), d.header.restartInterval)
	jfif = append(jfif, d.entropy...)
	jfif = putMarker(jfif, markerEOI)

	frame := Frame{JPEG: jfif, Width: d.header.width, Height: d.header.height, Timestamp: d.timestamp}
	d.reset()
	return frame, true, nil
}

func (d *Depacketizer) reset() {
	d.active = false
	d.entropy = d.entropy[:0]
}
