package avc

import "testing"

func buildPPS(ppsID, spsID int) []byte {
	w := &bitWriter{}
	w.writeUE(ppsID)
	w.writeUE(spsID)
	w.writeBit(0) // entropy_coding_mode_flag
	w.writeBit(0) // bottom_field_pic_order_in_frame_present_flag
	w.writeUE(0)  // num_slice_groups_minus1
	w.writeUE(0)  // num_ref_idx_l0_default_active_minus1
	w.writeUE(0)  // num_ref_idx_l1_default_active_minus1
	w.writeBit(0) // weighted_pred_flag
	w.writeBits(2, 0)
	w.writeUE(0) // pic_init_qp_minus26 (se, but ue(0) decodes fine as a placeholder magnitude)
	w.writeUE(0) // pic_init_qs_minus26
	w.writeUE(0) // chroma_qp_index_offset
	w.writeBit(0)
	w.writeBit(0)
	w.writeBit(0)
	for i := 0; i < 8; i++ {
		w.writeBit(0)
	}
	return append([]byte{0x68}, w.bytes()...) // NALU header: type 8 (PPS)
}

func TestParsePPSValid(t *testing.T) {
	nalu := buildPPS(0, 0)
	lookup := func(id int) (SPS, bool) { return SPS{}, id == 0 }
	none := func(id int) bool { return false }
	pps, err := ParsePPS(nalu, lookup, none)
	if err != nil {
		t.Fatalf("ParsePPS: %v", err)
	}
	if pps.ID != 0 || pps.SPSID != 0 {
		t.Errorf("pps = %+v", pps)
	}
}

func TestParsePPSRejectsUnknownSPS(t *testing.T) {
	nalu := buildPPS(0, 5)
	lookup := func(id int) (SPS, bool) { return SPS{}, false }
	none := func(id int) bool { return false }
	if _, err := ParsePPS(nalu, lookup, none); err == nil {
		t.Fatal("expected error for unknown SPS reference")
	}
}

func TestParsePPSRejectsWrongNALUType(t *testing.T) {
	nalu := buildPPS(0, 0)
	nalu[0] = 0x67 // type 7 (SPS), not PPS
	lookup := func(id int) (SPS, bool) { return SPS{}, true }
	none := func(id int) bool { return false }
	if _, err := ParsePPS(nalu, lookup, none); err == nil {
		t.Fatal("expected error for non-PPS NALU type")
	}
}

func TestParsePPSRejectsDuplicateID(t *testing.T) {
	nalu := buildPPS(3, 0)
	lookup := func(id int) (SPS, bool) { return SPS{}, true }
	seen := func(id int) bool { return id == 3 }
	if _, err := ParsePPS(nalu, lookup, seen); err == nil {
		t.Fatal("expected error for duplicate pic_parameter_set_id")
	}
}
