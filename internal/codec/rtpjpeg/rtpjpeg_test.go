package rtpjpeg

import (
	"bytes"
	"testing"
)

func mainHeaderBytes(fragOffset uint32, jpegType, q byte, widthUnits, heightUnits byte) []byte {
	return []byte{
		0, // type-specific
		byte(fragOffset >> 16), byte(fragOffset >> 8), byte(fragOffset),
		jpegType, q, widthUnits, heightUnits,
	}
}

func TestDepacketizerSinglePacketFrame(t *testing.T) {
	var d Depacketizer
	entropy := []byte{0xAB, 0xCD, 0xEF}
	payload := append(mainHeaderBytes(0, 1, 50, 80, 60), entropy...)

	frame, ok, err := d.Push(12345, 1, true, payload)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !ok {
		t.Fatal("expected a committed frame")
	}
	if frame.Width != 640 || frame.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", frame.Width, frame.Height)
	}
	if !bytes.HasPrefix(frame.JPEG, []byte{0xFF, 0xD8}) {
		t.Error("frame should start with SOI marker")
	}
	if !bytes.HasSuffix(frame.JPEG, []byte{0xFF, 0xD9}) {
		t.Error("frame should end with EOI marker")
	}
	if !bytes.Contains(frame.JPEG, entropy) {
		t.Error("frame should contain the entropy-coded payload")
	}
}

func TestDepacketizerMultiFragment(t *testing.T) {
	var d Depacketizer
	first := append(mainHeaderBytes(0, 0, 75, 40, 30), []byte{1, 2, 3}...)
	second := append(mainHeaderBytes(3, 0, 75, 40, 30), []byte{4, 5}...)

	if _, ok, err := d.Push(1, 100, false, first); ok || err != nil {
		t.Fatalf("first fragment: ok=%v err=%v", ok, err)
	}
	frame, ok, err := d.Push(1, 101, true, second)
	if err != nil {
		t.Fatalf("second fragment: %v", err)
	}
	if !ok {
		t.Fatal("expected commit on marker bit")
	}
	if !bytes.Contains(frame.JPEG, []byte{1, 2, 3, 4, 5}) {
		t.Error("entropy data should be concatenated in order")
	}
}

func TestDepacketizerRejectsInBandTables(t *testing.T) {
	var d Depacketizer
	payload := append(mainHeaderBytes(0, 1, 200, 10, 10), []byte{1, 2, 3}...)
	_, _, err := d.Push(1, 1, true, payload)
	if err != ErrUnsupported {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestDepacketizerDiscardsOnSequenceGap(t *testing.T) {
	var d Depacketizer
	first := append(mainHeaderBytes(0, 0, 75, 40, 30), []byte{1, 2, 3}...)
	if _, ok, err := d.Push(1, 100, false, first); ok || err != nil {
		t.Fatalf("first fragment: ok=%v err=%v", ok, err)
	}
	second := append(mainHeaderBytes(3, 0, 75, 40, 30), []byte{4, 5}...)
	// sequence jumps from 100 to 105, skipping fragments in between.
	if _, _, err := d.Push(1, 105, true, second); err == nil {
		t.Fatal("expected a sequence-gap error")
	}
}
