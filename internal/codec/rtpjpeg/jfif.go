// If you are AI: JFIF/JPEG container synthesis for headerless RTP/JPEG
// (RFC 2435), grounded on gvrtpjpegpacket.cpp's make_headers/
// make_quant_header/make_huffman_header/make_dri_header/make_app0.

package rtpjpeg

import "encoding/binary"

const (
	markerSOI = 0xD8
	markerEOI = 0xD9
	markerAPP0 = 0xE0
	markerDQT  = 0xDB
	markerSOF0 = 0xC0
	markerDHT  = 0xC4
	markerDRI  = 0xDD
	markerSOS  = 0xDA
)

func putMarker(buf []byte, marker byte) []byte {
	return append(buf, 0xFF, marker)
}

// putSegment appends a marker followed by a big-endian 16-bit length
// (counting the length field itself, per the JPEG spec) and the payload.
func putSegment(buf []byte, marker byte, payload []byte) []byte {
	buf = putMarker(buf, marker)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)+2))
	buf = append(buf, lenBuf[:]...)
	return append(buf, payload...)
}

func makeAPP0() []byte {
	payload := []byte{
		'J', 'F', 'I', 'F', 0, // identifier
		1, 2, // version 1.02
		0,       // units: 0 = aspect ratio only
		0, 1, // Xdensity
		0, 1, // Ydensity
		0, 0, // no thumbnail
	}
	return payload
}

func makeQuantHeader(table [64]byte, id byte) []byte {
	payload := make([]byte, 0, 65)
	payload = append(payload, id) // precision=0 (8-bit) in upper nibble, table id in lower
	payload = append(payload, table[:]...)
	return payload
}

func makeDRIHeader(restartInterval uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], restartInterval)
	return buf[:]
}

// sofComponent is one SOF0 component descriptor: id, sampling factors, and
// quantization table selector.
type sofComponent struct {
	id     byte
	hv     byte // horizontal/vertical sampling factors, packed nibbles
	quantT byte
}

func makeSOF0(width, height int, components []sofComponent) []byte {
	payload := make([]byte, 0, 8+3*len(components))
	payload = append(payload, 8) // sample precision
	var hbuf, wbuf [2]byte
	binary.BigEndian.PutUint16(hbuf[:], uint16(height))
	binary.BigEndian.PutUint16(wbuf[:], uint16(width))
	payload = append(payload, hbuf[:]...)
	payload = append(payload, wbuf[:]...)
	payload = append(payload, byte(len(components)))
	for _, c := range components {
		payload = append(payload, c.id, c.hv, c.quantT)
	}
	return payload
}

func makeHuffmanTable(class, id byte, codelens [16]byte, symbols []byte) []byte {
	payload := make([]byte, 0, 1+16+len(symbols))
	payload = append(payload, (class<<4)|id)
	payload = append(payload, codelens[:]...)
	payload = append(payload, symbols...)
	return payload
}

// sosComponent is one SOS scan-component descriptor: id and
// DC/AC Huffman-table selectors (packed nibbles).
type sosComponent struct {
	id     byte
	huffTS byte
}

func makeSOS(components []sosComponent) []byte {
	payload := make([]byte, 0, 4+2*len(components))
	payload = append(payload, byte(len(components)))
	for _, c := range components {
		payload = append(payload, c.id, c.huffTS)
	}
	payload = append(payload, 0, 63, 0) // spectral select 0..63, successive approx 0
	return payload
}

// makeHeaders synthesizes a complete JFIF/JPEG container prefix — SOI,
// APP0, DQT x2, optional DRI, SOF0, DHT x4, SOS — ready to be followed by
// the concatenated entropy-coded scan data and a trailing EOI, per
// spec.md §4.6.3.
func makeHeaders(width, height int, jpegType byte, q int, restartInterval uint16) []byte {
	luma, chroma := scaleTables(q)

	buf := make([]byte, 0, 512)
	buf = putMarker(buf, markerSOI)
	buf = putSegment(buf, markerAPP0, makeAPP0())
	buf = putSegment(buf, markerDQT, makeQuantHeader(luma, 0))
	buf = putSegment(buf, markerDQT, makeQuantHeader(chroma, 1))
	if restartInterval > 0 {
		buf = putSegment(buf, markerDRI, makeDRIHeader(restartInterval))
	}

	// RFC 2435 Main Header "type" 0 uses 2x1 (4:2:2) sampling, type 1 uses
	// 2x2 (4:2:0), per spec.md §4.6.3.
	var lumaHV byte = 0x21
	if jpegType == 1 {
		lumaHV = 0x22
	}
	buf = putSegment(buf, markerSOF0, makeSOF0(width, height, []sofComponent{
		{id: 1, hv: lumaHV, quantT: 0},
		{id: 2, hv: 0x11, quantT: 1},
		{id: 3, hv: 0x11, quantT: 1},
	}))

	buf = putSegment(buf, markerDHT, makeHuffmanTable(0, 0, lumDCCodelens, lumDCSymbols))
	buf = putSegment(buf, markerDHT, makeHuffmanTable(1, 0, lumACCodelens, lumACSymbols))
	buf = putSegment(buf, markerDHT, makeHuffmanTable(0, 1, chmDCCodelens, chmDCSymbols))
	buf = putSegment(buf, markerDHT, makeHuffmanTable(1, 1, chmACCodelens, chmACSymbols))

	buf = putSegment(buf, markerSOS, makeSOS([]sosComponent{
		{id: 1, huffTS: 0x00},
		{id: 2, huffTS: 0x11},
		{id: 3, huffTS: 0x11},
	}))

	return buf
}
