package avc

import "testing"

// bitWriter is a test-only MSB-first bit writer used to hand-construct
// synthetic RBSPs for ParseSPS/ParsePPS tests.
type bitWriter struct {
	buf  []byte
	bits int // bits used in the last byte
}

func (w *bitWriter) writeBit(b int) {
	if w.bits == 0 {
		w.buf = append(w.buf, 0)
	}
	if b != 0 {
		w.buf[len(w.buf)-1] |= 1 << (7 - w.bits)
	}
	w.bits = (w.bits + 1) % 8
}

func (w *bitWriter) writeBits(n, v int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit((v >> uint(i)) & 1)
	}
}

// writeUE encodes v as an Exp-Golomb "ue(v)" code.
func (w *bitWriter) writeUE(v int) {
	codeNum := v + 1
	nbits := 0
	for t := codeNum; t > 1; t >>= 1 {
		nbits++
	}
	for i := 0; i < nbits; i++ {
		w.writeBit(0)
	}
	w.writeBits(nbits+1, codeNum)
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}

func buildSPS(profileIDC int, widthMbsMinus1, heightMapUnitsMinus1 int, frameMbsOnly bool, cropping bool) []byte {
	return buildSPSWithConstraintByte(profileIDC, 0, widthMbsMinus1, heightMapUnitsMinus1, frameMbsOnly, cropping)
}

func buildSPSWithConstraintByte(profileIDC, constraintByte int, widthMbsMinus1, heightMapUnitsMinus1 int, frameMbsOnly bool, cropping bool) []byte {
	w := &bitWriter{}
	w.writeBits(8, profileIDC)
	w.writeBits(8, constraintByte) // constraint flags + reserved_zero_2bits
	w.writeBits(8, 30) // level_idc
	w.writeUE(0)       // seq_parameter_set_id

	w.writeUE(0) // log2_max_frame_num_minus4
	w.writeUE(0) // pic_order_cnt_type = 0
	w.writeUE(0) // log2_max_pic_order_cnt_lsb_minus4
	w.writeUE(1) // max_num_ref_frames
	w.writeBit(0) // gaps_in_frame_num_value_allowed_flag

	w.writeUE(widthMbsMinus1)
	w.writeUE(heightMapUnitsMinus1)
	if frameMbsOnly {
		w.writeBit(1)
	} else {
		w.writeBit(0)
		w.writeBit(0) // mb_adaptive_frame_field_flag
	}
	w.writeBit(1) // direct_8x8_inference_flag

	if cropping {
		w.writeBit(1)
		w.writeUE(0) // left
		w.writeUE(0) // right
		w.writeUE(0) // top
		w.writeUE(0) // bottom
	} else {
		w.writeBit(0)
	}
	w.writeBit(0) // vui_parameters_present_flag

	// pad to byte boundary with a few extra zero bits so the reader never
	// underflows mid-field.
	for i := 0; i < 8; i++ {
		w.writeBit(0)
	}

	rbsp := w.bytes()
	return append([]byte{0x67}, rbsp...) // NALU header: type 7 (SPS), nri 3
}

func TestParseSPSDimensions(t *testing.T) {
	nalu := buildSPS(66, 39, 29, true, false)
	sps, err := ParseSPS(nalu)
	if err != nil {
		t.Fatalf("ParseSPS: %v", err)
	}
	if sps.Width != 640 || sps.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", sps.Width, sps.Height)
	}
	if sps.ChromaFormatIDC != 1 {
		t.Errorf("ChromaFormatIDC = %d, want default 1", sps.ChromaFormatIDC)
	}
}

func TestParseSPSRejectsWrongNALUType(t *testing.T) {
	nalu := buildSPS(66, 39, 29, true, false)
	nalu[0] = 0x68 // type 8 (PPS), not SPS
	if _, err := ParseSPS(nalu); err == nil {
		t.Fatal("expected error for non-SPS NALU type")
	}
}

func TestParseSPSRejectsNonZeroReservedBits(t *testing.T) {
	nalu := buildSPSWithConstraintByte(66, 0x01, 39, 29, true, false) // reserved_zero_2bits = 01
	if _, err := ParseSPS(nalu); err == nil {
		t.Fatal("expected protocol-violation error for nonzero reserved_zero_2bits")
	}
}

func TestParseSPSRejectsPicOrderCntTypeTooLarge(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(8, 66)
	w.writeBits(8, 0)
	w.writeBits(8, 30)
	w.writeUE(0) // sps id
	w.writeUE(0) // log2_max_frame_num_minus4
	w.writeUE(2) // pic_order_cnt_type = 2, invalid
	for i := 0; i < 16; i++ {
		w.writeBit(0)
	}
	nalu := append([]byte{0x67}, w.bytes()...)
	if _, err := ParseSPS(nalu); err == nil {
		t.Fatal("expected protocol-violation error for pic_order_cnt_type > 1")
	}
}
