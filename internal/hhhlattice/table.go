// Package hhhlattice holds the per-address-family prefix-length lattice
// tables and the child-task eligibility and refinement helpers the HHH
// extractor uses while walking them.
package hhhlattice

import "github.com/agurim/agurim/internal/agflow"

// Label is a (src-len, dst-len) position in the 2-D prefix lattice.
type Label struct {
	SrcLen uint8
	DstLen uint8
}

// Sum returns SrcLen+DstLen.
func (l Label) Sum() (sum int) {
	return int(l.SrcLen) + int(l.DstLen)
}

// ipv4Labels enumerates all 25 (src,dst) pairs from {0,8,16,24,32}^2 in
// strictly decreasing sum order, ties broken by SrcLen descending. This
// exact order is load-bearing: a coarser label must be visited, and its
// contributing flows consumed, before any finer sibling at the same sum.
var ipv4Labels = []Label{
	{32, 32}, {32, 24}, {24, 32}, {32, 16}, {16, 32}, {24, 24},
	{32, 8}, {8, 32}, {24, 16}, {16, 24}, {32, 0}, {0, 32}, {24, 8}, {8, 24}, {16, 16},
	{24, 0}, {0, 24}, {16, 8}, {8, 16}, {16, 0}, {0, 16}, {8, 8}, {8, 0}, {0, 8}, {0, 0},
}

// ipv6Labels is the heuristic 39-of-81 subset of the v6 lattice: the full
// cross product of {0,16,32,48,64,112,128}^2 would be 49 pairs, and a wider
// heuristic table in the source skips combinations unlikely to matter.
// Implementers must follow this exact listed table — results depend on it.
var ipv6Labels = []Label{
	{128, 128}, {128, 112}, {112, 128}, {112, 112},
	{128, 64}, {64, 128},
	{128, 48}, {48, 128}, {112, 64}, {64, 112},
	{128, 32}, {32, 128},
	{128, 16}, {16, 128},
	{128, 0}, {0, 128}, {64, 64},
	{64, 32}, {32, 64}, {48, 48},
	{64, 16}, {16, 64}, {48, 32}, {32, 48},
	{64, 0}, {0, 64}, {48, 16}, {16, 48}, {32, 32},
	{48, 0}, {0, 48}, {32, 16}, {16, 32}, {32, 0}, {0, 32}, {16, 16}, {16, 0}, {0, 16}, {0, 0},
}

// protoLabels covers the proto-port lattice: each side of the
// [proto, port_hi, port_lo] spec is truncated to 0 (wildcard), 8 (protocol
// only), or 24 (protocol and port) bits.
var protoLabels = []Label{
	{24, 24}, {24, 8}, {8, 24}, {8, 8}, {0, 0},
}

// floor is the finest label at which the HHH extractor may still spawn
// child tasks for a given address family — /16 for v4, /64 for v6, and
// "never" for proto-port.
func floor(af agflow.AddrFamily) (srcFloor, dstFloor uint8) {
	switch af {
	case agflow.AddrFamilyIPv4:
		return 16, 16
	case agflow.AddrFamilyIPv6:
		return 64, 64
	default:
		return 255, 255
	}
}

// Labels returns the lattice table for af, in its fixed non-increasing-sum
// visiting order, along with the af's byte size.
func Labels(af agflow.AddrFamily) (labels []Label, byteSize int) {
	switch af {
	case agflow.AddrFamilyIPv4:
		return ipv4Labels, 4
	case agflow.AddrFamilyIPv6:
		return ipv6Labels, 16
	default:
		return protoLabels, 3
	}
}

// CanSpawnChildren reports whether a task at label, with the given
// bit-step, is eligible to spawn a finer child task: the bit-step must be
// even (a root task's bitStep of 0 counts), and the label must be neither
// the top (all-bits, meaning no finer refinement exists) nor at or below
// the AF floor.
func CanSpawnChildren(af agflow.AddrFamily, label Label, bitStep uint32) (ok bool) {
	if label.SrcLen == 0 || label.DstLen == 0 {
		return false
	}
	if bitStep%2 != 0 {
		return false
	}

	switch af {
	case agflow.AddrFamilyIPv4:
		if label.SrcLen == 32 && label.DstLen == 32 {
			return false
		}

		srcFloor, dstFloor := floor(af)

		return label.SrcLen > srcFloor && label.DstLen > dstFloor
	case agflow.AddrFamilyIPv6:
		if label.SrcLen == 128 && label.DstLen == 128 {
			return false
		}

		srcFloor, dstFloor := floor(af)

		return label.SrcLen > srcFloor && label.DstLen > dstFloor
	default:
		return false
	}
}

// NextBitStep follows the fixed refinement sequence 4 -> 2 -> 1 -> 0.
func NextBitStep(bitStep uint32) (next uint32) {
	switch bitStep {
	case 0:
		return 4
	case 4:
		return 2
	case 2:
		return 1
	default:
		return 0
	}
}

// ChildLabel adjusts label by diff bits (which may be negative: the
// 4 -> 2 -> 1 -> 0 bit-step sequence overshoots on its first jump and
// corrects on later ones) along the smaller of its two dimensions, or
// both if they're equal, clamped to the AF's bit width.
func ChildLabel(af agflow.AddrFamily, label Label, diff int) (child Label) {
	maxBits := uint8(af.ByteSize() * 8)

	child = label
	if label.SrcLen < label.DstLen {
		child.SrcLen = applyDiff(label.SrcLen, diff, maxBits)
	} else if label.SrcLen > label.DstLen {
		child.DstLen = applyDiff(label.DstLen, diff, maxBits)
	} else {
		child.SrcLen = applyDiff(label.SrcLen, diff, maxBits)
		child.DstLen = applyDiff(label.DstLen, diff, maxBits)
	}

	return child
}

func applyDiff(v uint8, diff int, max uint8) (r uint8) {
	sum := int(v) + diff
	if sum < 0 {
		return 0
	}
	if sum > int(max) {
		return max
	}

	return uint8(sum)
}
