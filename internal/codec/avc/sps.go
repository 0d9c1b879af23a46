// If you are AI: H.264 SPS parser (C6.5), grounded on gravc.cpp's
// Configuration/Sps classes, per ISO/IEC 14496-10 §7.3.2.1.1. Field names
// follow the spec text exactly so the bit-decode order is traceable
// against the standard.

package avc

import (
	"fmt"

	"videopipe/internal/codec/bitstream"
	"videopipe/internal/codec/expgolomb"
)

// profileHasChromaInfo lists the profile_idc values whose SPS carries
// chroma_format_idc/bit_depth/scaling-matrix fields, per §7.3.2.1.1.
var profileHasChromaInfo = map[int]bool{
	100: true, 110: true, 122: true, 244: true, 44: true,
	83: true, 86: true, 118: true, 128: true, 138: true,
	139: true, 134: true, 135: true,
}

// SPS is a decoded Sequence Parameter Set.
type SPS struct {
	ID               int
	ProfileIDC       int
	LevelIDC         int
	ChromaFormatIDC  int
	PicOrderCntType  int
	Width            int
	Height           int
	FrameMbsOnlyFlag bool
}

// ParseSPS parses an Annex-B NALU body (header byte included) into an SPS.
// It validates the NALU type, the two reserved zero bits, pic_order_cnt_type
// <= 1, and that the scaling-matrix and HRD-parameters-present flags are
// all 0 (those features are not implemented), per spec.md §4.6.5.
func ParseSPS(nalu []byte) (SPS, error) {
	if len(nalu) < 2 {
		return SPS{}, fmt.Errorf("avc: SPS NALU too short")
	}
	naluType := int(nalu[0] & 0x1f)
	if naluType != 7 {
		return SPS{}, fmt.Errorf("avc: protocol-violation: NALU type %d is not SPS (7)", naluType)
	}

	rbsp := RemoveByteStuffing(nalu[1:])
	r := bitstream.New(rbsp)

	sps := SPS{}
	sps.ProfileIDC = int(r.U8())
	constraintFlags := r.U8() // constraint_set0..5_flag + reserved_zero_2bits
	if constraintFlags&0x03 != 0 {
		return SPS{}, fmt.Errorf("avc: protocol-violation: SPS reserved_zero_2bits is not 0")
	}
	sps.LevelIDC = int(r.U8())
	sps.ID = int(expgolomb.Decode(r.Golomb(), 0))

	sps.ChromaFormatIDC = 1 // default 4:2:0 when not signaled
	if profileHasChromaInfo[sps.ProfileIDC] {
		sps.ChromaFormatIDC = int(expgolomb.Decode(r.Golomb(), 0))
		if sps.ChromaFormatIDC == 3 {
			r.Flag() // separate_colour_plane_flag
		}
		expgolomb.Decode(r.Golomb(), 0) // bit_depth_luma_minus8
		expgolomb.Decode(r.Golomb(), 0) // bit_depth_chroma_minus8
		r.Flag()                       // qpprime_y_zero_transform_bypass_flag
		scalingMatrixPresent := r.Flag()
		if scalingMatrixPresent {
			return SPS{}, fmt.Errorf("avc: protocol-violation: scaling matrices are not implemented")
		}
	}

	expgolomb.Decode(r.Golomb(), 0) // log2_max_frame_num_minus4
	sps.PicOrderCntType = int(expgolomb.Decode(r.Golomb(), 0))
	if sps.PicOrderCntType > 1 {
		return SPS{}, fmt.Errorf("avc: protocol-violation: pic_order_cnt_type %d > 1", sps.PicOrderCntType)
	}
	switch sps.PicOrderCntType {
	case 0:
		expgolomb.Decode(r.Golomb(), 0) // log2_max_pic_order_cnt_lsb_minus4
	case 1:
		r.Flag() // delta_pic_order_always_zero_flag
		expgolomb.MakeSigned(expgolomb.Decode(r.Golomb(), 0)) // offset_for_non_ref_pic
		expgolomb.MakeSigned(expgolomb.Decode(r.Golomb(), 0)) // offset_for_top_to_bottom_field
		cycle := int(expgolomb.Decode(r.Golomb(), 0))
		for i := 0; i < cycle; i++ {
			expgolomb.Decode(r.Golomb(), 0) // offset_for_ref_frame[i]
		}
	}

	expgolomb.Decode(r.Golomb(), 0) // max_num_ref_frames
	r.Flag()                       // gaps_in_frame_num_value_allowed_flag

	picWidthInMbsMinus1 := int(expgolomb.Decode(r.Golomb(), 0))
	picHeightInMapUnitsMinus1 := int(expgolomb.Decode(r.Golomb(), 0))
	sps.FrameMbsOnlyFlag = r.Flag()
	if !sps.FrameMbsOnlyFlag {
		r.Flag() // mb_adaptive_frame_field_flag
	}
	r.Flag() // direct_8x8_inference_flag

	var cropLeft, cropRight, cropTop, cropBottom int
	if r.Flag() { // frame_cropping_flag
		cropLeft = int(expgolomb.Decode(r.Golomb(), 0))
		cropRight = int(expgolomb.Decode(r.Golomb(), 0))
		cropTop = int(expgolomb.Decode(r.Golomb(), 0))
		cropBottom = int(expgolomb.Decode(r.Golomb(), 0))
	}

	if r.Flag() { // vui_parameters_present_flag
		if err := skipVUI(r); err != nil {
			return SPS{}, err
		}
	}

	if r.Failed() {
		return SPS{}, fmt.Errorf("avc: underflow parsing SPS")
	}

	sps.Width, sps.Height = cropDimensions(picWidthInMbsMinus1, picHeightInMapUnitsMinus1,
		sps.FrameMbsOnlyFlag, sps.ChromaFormatIDC, cropLeft, cropRight, cropTop, cropBottom)

	return sps, nil
}

// cropDimensions applies the libav-compatible crop formula from spec.md
// §4.6.5: dx = 16(pic_width_in_mbs_minus1+1) - k*min(frame_crop_right_offset,lim)
// (plus the symmetric left term, since libav crops both sides), and
// likewise for dy with k', lim' depending additionally on frame_mbs_only_flag.
func cropDimensions(widthMbsMinus1, heightMapUnitsMinus1 int, frameMbsOnly bool, chromaFormatIDC int, left, right, top, bottom int) (dx, dy int) {
	width := 16 * (widthMbsMinus1 + 1)
	height := 16 * (heightMapUnitsMinus1 + 1) * (2 - boolToInt(frameMbsOnly))

	var k, kPrime int
	if chromaFormatIDC == 0 { // monochrome
		k = 1
		kPrime = 2 - boolToInt(frameMbsOnly)
	} else {
		if chromaFormatIDC == 3 { // 4:4:4
			k = 1
		} else { // 4:2:0, 4:2:2
			k = 2
		}
		subHeightC := 1
		if chromaFormatIDC == 1 { // 4:2:0
			subHeightC = 2
		}
		kPrime = subHeightC * (2 - boolToInt(frameMbsOnly))
	}

	lim := width / k
	limPrime := height / kPrime

	dx = width - k*min(left, lim) - k*min(right, lim)
	dy = height - kPrime*min(top, limPrime) - kPrime*min(bottom, limPrime)
	return dx, dy
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// skipVUI reads just enough of vui_parameters() (§E.1.1) to validate that
// neither HRD-parameters-present flag is set, per spec.md §4.6.5's
// "HRD parameters present flags must be 0 (not implemented)".
func skipVUI(r *bitstream.Reader) error {
	if r.Flag() { // aspect_ratio_info_present_flag
		idc := r.U8()
		if idc == 255 { // Extended_SAR
			r.U16() // sar_width
			r.U16() // sar_height
		}
	}
	if r.Flag() { // overscan_info_present_flag
		r.Flag() // overscan_appropriate_flag
	}
	if r.Flag() { // video_signal_type_present_flag
		r.Bits(3) // video_format
		r.Flag()  // video_full_range_flag
		if r.Flag() { // colour_description_present_flag
			r.U8() // colour_primaries
			r.U8() // transfer_characteristics
			r.U8() // matrix_coefficients
		}
	}
	if r.Flag() { // chroma_loc_info_present_flag
		expgolomb.Decode(r.Golomb(), 0) // chroma_sample_loc_type_top_field
		expgolomb.Decode(r.Golomb(), 0) // chroma_sample_loc_type_bottom_field
	}
	if r.Flag() { // timing_info_present_flag
		r.U32() // num_units_in_tick
		r.U32() // time_scale
		r.Flag() // fixed_frame_rate_flag
	}
	nalHRD := r.Flag()
	vclHRD := r.Flag()
	if nalHRD || vclHRD {
		return fmt.Errorf("avc: protocol-violation: HRD parameters are not implemented")
	}
	return nil
}
