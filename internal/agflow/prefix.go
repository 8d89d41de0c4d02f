package agflow

// prefixMask holds the high-order bit mask for each fractional-byte bit
// count 0..7, e.g. prefixMask[3] masks in the top 3 bits of a byte.
var prefixMask = [8]byte{0x00, 0x80, 0xc0, 0xe0, 0xf0, 0xf8, 0xfc, 0xfe}

// Truncate copies the first length bits of src into a new MaxLen-byte
// array, zero-filling the remainder. byteSize does not affect the result.
// It is the prefix-truncation primitive used by the lattice walker to build
// an aggregate spec from a finer one.
func Truncate(src [MaxLen]byte, length uint8, byteSize int) (dst [MaxLen]byte) {
	bytes := int(length / 8)
	bits := length & 7

	copy(dst[:bytes], src[:bytes])
	if bits != 0 {
		dst[bytes] = src[bytes] & prefixMask[bits]
	}

	return dst
}

// TruncateSpec builds the aggregate spec obtained by truncating spec's src
// and dst to srcLen/dstLen bits; byteSize is passed through to [Truncate].
func TruncateSpec(spec Spec, srcLen, dstLen uint8, byteSize int) (out Spec) {
	out.SrcLen = srcLen
	out.DstLen = dstLen
	out.Src = Truncate(spec.Src, srcLen, byteSize)
	out.Dst = Truncate(spec.Dst, dstLen, byteSize)

	return out
}

// PrefixEqual reports whether a and b agree on their first length bits.
// length of 0 always matches (the wildcard prefix).
func PrefixEqual(a, b [MaxLen]byte, length uint8) (ok bool) {
	if length == 0 {
		return true
	}

	bytes := int(length / 8)
	bits := length & 7

	for i := 0; i < bytes; i++ {
		if a[i] != b[i] {
			return false
		}
	}

	mask := prefixMask[bits]
	if mask == 0 {
		return true
	}

	return a[bytes]&mask == b[bytes]&mask
}

// IsOverlapped reports whether p and q overlap: their src prefixes agree on
// the shorter of the two src lengths, and likewise for dst.
func IsOverlapped(p, q Spec) (ok bool) {
	srcLen := p.SrcLen
	if q.SrcLen < srcLen {
		srcLen = q.SrcLen
	}

	dstLen := p.DstLen
	if q.DstLen < dstLen {
		dstLen = q.DstLen
	}

	return PrefixEqual(p.Src, q.Src, srcLen) && PrefixEqual(p.Dst, q.Dst, dstLen)
}
