package rtpavc

import (
	"bytes"
	"testing"
)

func TestReassemblerSingleNALU(t *testing.T) {
	var r Reassembler
	nalu := []byte{0x67, 0xAA, 0xBB, 0xCC} // type 7 (SPS), nri 3
	commit, ok, err := r.Push(1000, 1, nalu)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !ok {
		t.Fatal("expected immediate commit for single NALU")
	}
	want := append(append([]byte{}, startCode...), nalu...)
	if !bytes.Equal(commit.NALU, want) {
		t.Errorf("NALU = %x, want %x", commit.NALU, want)
	}
}

func TestReassemblerFUA(t *testing.T) {
	var r Reassembler
	// Original NALU header byte: nri=2, type=5 (IDR slice).
	origHeader := byte(2<<5 | 5)

	indicator := (origHeader & 0xe0) | byte(fuA) // FU indicator: NRI from orig, type=28
	start := []byte{indicator, 0x80 | 5, 0x22}   // FU header (start bit, type=5), one fragment byte
	mid := []byte{indicator, 5, 0x33}            // FU header without start/end bits
	end := []byte{indicator, 0x40 | 5, 0x44, 0x55}

	if _, ok, err := r.Push(2000, 10, start); ok || err != nil {
		t.Fatalf("start fragment: ok=%v err=%v", ok, err)
	}
	if _, ok, err := r.Push(2000, 11, mid); ok || err != nil {
		t.Fatalf("mid fragment: ok=%v err=%v", ok, err)
	}
	commit, ok, err := r.Push(2000, 12, end)
	if err != nil {
		t.Fatalf("end fragment: %v", err)
	}
	if !ok {
		t.Fatal("expected commit on FU-A end")
	}

	want := append(append([]byte{}, startCode...), origHeader, 0x22, 0x33, 0x44, 0x55)
	if !bytes.Equal(commit.NALU, want) {
		t.Errorf("NALU = %x, want %x", commit.NALU, want)
	}
}

func TestReassemblerRejectsAggregation(t *testing.T) {
	var r Reassembler
	_, _, err := r.Push(0, 0, []byte{24, 0, 0}) // STAP-A
	if err == nil {
		t.Fatal("expected error for aggregation packet")
	}
}

func TestReassemblerDiscontinuousFragment(t *testing.T) {
	var r Reassembler
	start := []byte{(2 << 5) | fuA, 0x80 | 5, 0x11}
	if _, _, err := r.Push(3000, 1, start); err != nil {
		t.Fatalf("start: %v", err)
	}
	mid := []byte{fuA, 5, 0x22}
	// seq jumps from 1 to 5: discontinuous.
	if _, _, err := r.Push(3000, 5, mid); err == nil {
		t.Fatal("expected discontinuity error")
	}
}
