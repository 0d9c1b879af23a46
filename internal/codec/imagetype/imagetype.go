// If you are AI: This file implements the image-type descriptor and
// sniffer (C6.1), grounded on grimagetype.cpp's ImageType class
// (typeFromSignature, str()/set(), valid(), size()/rowsize()).

package imagetype

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is one of the known image container formats, or Unknown.
type Format string

const (
	JPEG    Format = "jpeg"
	PNG     Format = "png"
	PNM     Format = "pnm"
	Raw     Format = "raw"
	Unknown Format = ""
)

// wireName maps a Format to its spec.md §6 wire-string component
// ("image/jpeg", "image/x.raw", "image/x-portable-anymap", ...).
var wireName = map[Format]string{
	JPEG: "jpeg",
	PNG:  "png",
	Raw:  "x.raw",
	PNM:  "x-portable-anymap",
}

var nameToFormat = map[string]Format{
	"jpeg":              JPEG,
	"png":                PNG,
	"x.raw":              Raw,
	"x-portable-anymap":  PNM,
}

// Type is the image type descriptor from spec.md §3:
// (format, dx, dy, channels), serialized as image/<name>;xsize=<dx>x<dy>x<c>.
type Type struct {
	Format   Format
	DX, DY   int
	Channels int
	Extra    string // free-form string for non-image payloads (e.g. "application/json")
}

// Valid reports dx>0 ∧ dy>0 ∧ channels∈{1,3}, per spec.md §3's invariant.
func (t Type) Valid() bool {
	return t.DX > 0 && t.DY > 0 && (t.Channels == 1 || t.Channels == 3)
}

// Size returns dx·dy·channels, the raw buffer size in bytes.
func (t Type) Size() int { return t.DX * t.DY * t.Channels }

// RowSize returns dx·channels, the raw buffer's row stride in bytes.
func (t Type) RowSize() int { return t.DX * t.Channels }

// String serializes the type per spec.md §6's wire grammar. A Type with an
// unknown Format and non-empty Extra (a non-image payload tagged by a
// free-form type string, per spec.md §3) is serialized as Extra verbatim.
func (t Type) String() string {
	name, ok := wireName[t.Format]
	if !ok {
		if t.Extra != "" {
			return t.Extra
		}
		return ""
	}
	return fmt.Sprintf("image/%s;xsize=%dx%dx%d", name, t.DX, t.DY, t.Channels)
}

// Parse parses a wire type string, per spec.md §6: split on ';', then match
// the "xsize=<dx>[x_,]<dy>[x_,]<c>" grammar within the matched segment. A
// string that does not match a known image/<fmt> prefix is returned as a
// Type with Format==Unknown and Extra set to the original string.
func Parse(s string) (Type, error) {
	parts := strings.Split(s, ";")
	head := parts[0]
	name, ok := strings.CutPrefix(head, "image/")
	format, known := nameToFormat[name]
	if !ok || !known {
		return Type{Format: Unknown, Extra: s}, nil
	}

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		rest, ok := strings.CutPrefix(p, "xsize=")
		if !ok {
			continue
		}
		dx, dy, c, err := parseXsize(rest)
		if err != nil {
			return Type{}, fmt.Errorf("imagetype: parse %q: %w", s, err)
		}
		return Type{Format: format, DX: dx, DY: dy, Channels: c}, nil
	}
	return Type{}, fmt.Errorf("imagetype: %q has no xsize attribute", s)
}

func parseXsize(s string) (dx, dy, c int, err error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == 'x' || r == '_' || r == ','
	})
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("malformed xsize %q", s)
	}
	dx, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, 0, err
	}
	dy, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, 0, err
	}
	c, err = strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return dx, dy, c, nil
}

// Sniff inspects a byte prefix and decides the format and dimensions, per
// spec.md §6.1. At least 30 bytes should be supplied for PNG; JPEG requires
// the full file since the SOF segment sits at a variable offset. raw is
// never sniffed — it is declared out-of-band via a type string.
func Sniff(data []byte) Type {
	switch {
	case isJPEGSignature(data):
		return sniffJPEG(data)
	case isPNGSignature(data):
		return sniffPNG(data)
	case isPNMSignature(data):
		return sniffPNM(data)
	default:
		return Type{Format: Unknown}
	}
}

func isJPEGSignature(d []byte) bool {
	return len(d) >= 3 && d[0] == 0xFF && d[1] == 0xD8 && d[2] == 0xFF
}

func isPNGSignature(d []byte) bool {
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	return len(d) >= len(sig) && string(d[:len(sig)]) == string(sig)
}

func isPNMSignature(d []byte) bool {
	if len(d) < 2 || d[0] != 'P' {
		return false
	}
	if d[1] < '1' || d[1] > '6' {
		return false
	}
	return len(d) < 3 || isWhitespace(d[2])
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// sniffJPEG walks marker segments looking for an SOFn (0xC0-0xCF, excluding
// DHT/JPG/DAC at 0xC4/0xC8/0xCC) to extract width/height; channel count is
// read from the SOF component count.
func sniffJPEG(d []byte) Type {
	i := 2
	for i+4 <= len(d) {
		if d[i] != 0xFF {
			i++
			continue
		}
		marker := d[i+1]
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		if marker == 0xD9 { // EOI
			break
		}
		if i+4 > len(d) {
			break
		}
		segLen := int(d[i+2])<<8 | int(d[i+3])
		if isSOF(marker) {
			if i+10 > len(d) {
				break
			}
			h := int(d[i+5])<<8 | int(d[i+6])
			w := int(d[i+7])<<8 | int(d[i+8])
			c := int(d[i+9])
			return Type{Format: JPEG, DX: w, DY: h, Channels: c}
		}
		i += 2 + segLen
	}
	return Type{Format: JPEG}
}

func isSOF(marker byte) bool {
	if marker < 0xC0 || marker > 0xCF {
		return false
	}
	switch marker {
	case 0xC4, 0xC8, 0xCC: // DHT, JPG, DAC are not SOF markers
		return false
	}
	return true
}

func sniffPNG(d []byte) Type {
	// IHDR is always the first chunk, at a fixed offset: 8-byte signature,
	// 4-byte length, 4-byte "IHDR", 4-byte width, 4-byte height, then
	// bit-depth/color-type.
	if len(d) < 29 {
		return Type{Format: PNG}
	}
	w := be32(d[16:20])
	h := be32(d[20:24])
	colorType := d[25]
	channels := 3
	switch colorType {
	case 0, 3, 4: // grayscale, palette, grayscale+alpha
		channels = 1
	case 2, 6: // RGB, RGBA
		channels = 3
	}
	return Type{Format: PNG, DX: int(w), DY: int(h), Channels: channels}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func sniffPNM(d []byte) Type {
	channels := 1
	switch d[1] {
	case '3', '6':
		channels = 3
	}
	fields := tokenizePNMHeader(d[2:])
	if len(fields) < 2 {
		return Type{Format: PNM}
	}
	dx, err1 := strconv.Atoi(fields[0])
	dy, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return Type{Format: PNM}
	}
	return Type{Format: PNM, DX: dx, DY: dy, Channels: channels}
}

// tokenizePNMHeader extracts the whitespace-separated width/height tokens
// from a PNM header, skipping '#' comment lines as the format requires.
func tokenizePNMHeader(d []byte) []string {
	var tokens []string
	var cur strings.Builder
	inComment := false
	for _, b := range d {
		if inComment {
			if b == '\n' {
				inComment = false
			}
			continue
		}
		if b == '#' {
			inComment = true
			continue
		}
		if isWhitespace(b) {
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
				if len(tokens) >= 2 {
					break
				}
			}
			continue
		}
		cur.WriteByte(b)
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
