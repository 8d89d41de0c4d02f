// Package agflow contains the flow data model shared by the whole HHH
// aggregation engine: prefix specs, flow records, and address families.
package agflow

import "fmt"

// MaxLen is the width, in bytes, of the raw src/dst byte arrays. It is wide
// enough to hold a full IPv6 address.
const MaxLen = 16

// AddrFamily identifies the kind of prefix a [Spec] carries.
type AddrFamily uint8

// Address families supported by the engine.
const (
	AddrFamilyNone AddrFamily = iota
	AddrFamilyIPv4
	AddrFamilyIPv6
	AddrFamilyProto
)

// String implements the [fmt.Stringer] interface for AddrFamily.
func (f AddrFamily) String() (s string) {
	switch f {
	case AddrFamilyNone:
		return "none"
	case AddrFamilyIPv4:
		return "v4"
	case AddrFamilyIPv6:
		return "v6"
	case AddrFamilyProto:
		return "proto"
	default:
		return fmt.Sprintf("!bad_af_%d", uint8(f))
	}
}

// ByteSize returns the number of significant bytes for the address family:
// 4 for v4, 16 for v6, 3 for proto-port ([proto, port_hi, port_lo]).
func (f AddrFamily) ByteSize() (n int) {
	switch f {
	case AddrFamilyIPv4:
		return 4
	case AddrFamilyIPv6:
		return 16
	case AddrFamilyProto:
		return 3
	default:
		panic(fmt.Errorf("agflow: unsupported address family %s", f))
	}
}

// Basis is the counter used for threshold comparison and for sorting
// aggregates.
type Basis uint8

// Supported bases.
const (
	BasisPacket Basis = iota + 1
	BasisByte
	BasisCombination
)

// String implements the [fmt.Stringer] interface for Basis.
func (b Basis) String() (s string) {
	switch b {
	case BasisPacket:
		return "packet"
	case BasisByte:
		return "byte"
	case BasisCombination:
		return "combination"
	default:
		return fmt.Sprintf("!bad_basis_%d", uint8(b))
	}
}

// Spec is a (src-prefix, dst-prefix) pair. Two specs are equal iff all four
// fields are byte-equal; equality is prefix-length-sensitive, so a /24 and a
// /32 covering the same bytes are distinct specs.
type Spec struct {
	Src    [MaxLen]byte
	Dst    [MaxLen]byte
	SrcLen uint8
	DstLen uint8
}

// Equal reports whether s and other describe the same prefix pair.
func (s Spec) Equal(other Spec) (ok bool) {
	return s.SrcLen == other.SrcLen &&
		s.DstLen == other.DstLen &&
		s.Src == other.Src &&
		s.Dst == other.Dst
}

// SumLen returns SrcLen+DstLen, the lattice-sum used to order labels.
func (s Spec) SumLen() (sum int) {
	return int(s.SrcLen) + int(s.DstLen)
}
