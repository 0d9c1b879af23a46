package avc

import (
	"bytes"
	"testing"
)

func TestRemoveByteStuffing(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x02, 0x00, 0x00, 0x03, 0x03}
	want := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x03}
	got := RemoveByteStuffing(in)
	if !bytes.Equal(got, want) {
		t.Errorf("RemoveByteStuffing(%x) = %x, want %x", in, got, want)
	}
}

func TestAddByteStuffingInverse(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0x03, 0x45, 0x00, 0x00, 0x00}
	stuffed := AddByteStuffing(raw)
	back := RemoveByteStuffing(stuffed)
	if !bytes.Equal(back, raw) {
		t.Errorf("round trip: got %x, want %x", back, raw)
	}
}

func TestAddByteStuffingNoOpWhenUnneeded(t *testing.T) {
	raw := []byte{0x12, 0x34, 0x00, 0x56, 0x00, 0x00, 0x10}
	stuffed := AddByteStuffing(raw)
	if !bytes.Equal(stuffed, raw) {
		t.Errorf("AddByteStuffing(%x) = %x, want unchanged", raw, stuffed)
	}
}
