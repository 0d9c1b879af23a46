// If you are AI: RBSP byte-stuffing removal/insertion, grounded on
// gravc.cpp's Rbsp namespace functions (add_byte_stuffing/
// remove_byte_stuffing), per ISO/IEC 14496-10 §7.3.2.1.1 / §7.4.1.

package avc

// RemoveByteStuffing strips every emulation-prevention third byte: each
// "00 00 03" becomes "00 00", per spec.md §8's universal invariant.
func RemoveByteStuffing(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeroRun := 0
	for i := 0; i < len(b); i++ {
		if zeroRun >= 2 && b[i] == 0x03 {
			zeroRun = 0
			continue
		}
		out = append(out, b[i])
		if b[i] == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out
}

// AddByteStuffing inserts an emulation-prevention 0x03 byte after every
// "00 00" run that would otherwise be followed by 0x00, 0x01, 0x02, or
// 0x03, the inverse of RemoveByteStuffing.
func AddByteStuffing(b []byte) []byte {
	out := make([]byte, 0, len(b)+len(b)/8+4)
	zeroRun := 0
	for i := 0; i < len(b); i++ {
		if zeroRun >= 2 && b[i] <= 0x03 {
			out = append(out, 0x03)
			zeroRun = 0
		}
		out = append(out, b[i])
		if b[i] == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return out
}
