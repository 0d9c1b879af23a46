// If you are AI: H.264 PPS parser (C6.6), grounded on gravc.cpp's Pps
// class, per ISO/IEC 14496-10 §7.3.2.2.

package avc

import (
	"fmt"

	"videopipe/internal/codec/bitstream"
	"videopipe/internal/codec/expgolomb"
)

// PPS is a decoded Picture Parameter Set.
type PPS struct {
	ID                        int
	SPSID                     int
	EntropyCodingModeFlag     bool
	BottomFieldPicOrderFlag   bool
	NumSliceGroupsMinus1      int
}

// ParsePPS parses an Annex-B NALU body (header byte included) into a PPS.
// lookupSPS must report whether id names an already-parsed SPS, per
// spec.md §4.6.6's requirement that a PPS references a known SPS. knownPPS
// must report whether id already names a previously parsed PPS; a repeat
// pic_parameter_set_id is rejected, per spec.md §4.6.6's "uniqueness of
// (pic_parameter_set_id)" requirement.
func ParsePPS(nalu []byte, lookupSPS func(id int) (SPS, bool), knownPPS func(id int) bool) (PPS, error) {
	if len(nalu) < 2 {
		return PPS{}, fmt.Errorf("avc: PPS NALU too short")
	}
	naluType := int(nalu[0] & 0x1f)
	if naluType != 8 {
		return PPS{}, fmt.Errorf("avc: protocol-violation: NALU type %d is not PPS (8)", naluType)
	}

	rbsp := RemoveByteStuffing(nalu[1:])
	r := bitstream.New(rbsp)

	pps := PPS{}
	pps.ID = int(expgolomb.Decode(r.Golomb(), 0))
	if knownPPS(pps.ID) {
		return PPS{}, fmt.Errorf("avc: protocol-violation: duplicate pic_parameter_set_id %d", pps.ID)
	}
	pps.SPSID = int(expgolomb.Decode(r.Golomb(), 0))
	if _, ok := lookupSPS(pps.SPSID); !ok {
		return PPS{}, fmt.Errorf("avc: protocol-violation: PPS %d references unknown SPS %d", pps.ID, pps.SPSID)
	}

	pps.EntropyCodingModeFlag = r.Flag()
	pps.BottomFieldPicOrderFlag = r.Flag()
	pps.NumSliceGroupsMinus1 = int(expgolomb.Decode(r.Golomb(), 0))
	if pps.NumSliceGroupsMinus1 > 0 {
		return PPS{}, fmt.Errorf("avc: protocol-violation: slice groups are not implemented")
	}

	expgolomb.Decode(r.Golomb(), 0) // num_ref_idx_l0_default_active_minus1
	expgolomb.Decode(r.Golomb(), 0) // num_ref_idx_l1_default_active_minus1
	r.Flag()                       // weighted_pred_flag
	r.Bits(2)                      // weighted_bipred_idc
	expgolomb.MakeSigned(expgolomb.Decode(r.Golomb(), 0)) // pic_init_qp_minus26
	expgolomb.MakeSigned(expgolomb.Decode(r.Golomb(), 0)) // pic_init_qs_minus26
	expgolomb.MakeSigned(expgolomb.Decode(r.Golomb(), 0)) // chroma_qp_index_offset
	r.Flag()                                              // deblocking_filter_control_present_flag
	r.Flag()                                              // constrained_intra_pred_flag
	r.Flag()                                              // redundant_pic_cnt_present_flag

	if r.Failed() {
		return PPS{}, fmt.Errorf("avc: underflow parsing PPS")
	}

	return pps, nil
}
