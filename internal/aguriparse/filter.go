package aguriparse

import (
	"fmt"
	"strings"

	"github.com/agurim/agurim/internal/agflow"
)

// ParseFilter parses a -f filter argument into the spec/address-family pair
// flows are tested against via [agflow.IsOverlapped], grounded on the
// source's is_ip dispatch over the two accepted forms: an address pair
// "<src> <dst>", or a protocol triple "<proto>:<sport>:<dport>".
func ParseFilter(arg string) (spec agflow.Spec, af agflow.AddrFamily, err error) {
	arg = strings.TrimSpace(arg)

	if strings.Contains(arg, ":") && !strings.Contains(arg, " ") {
		return parseProtoFilter(arg)
	}

	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return spec, af, fmt.Errorf("aguriparse: bad filter %q: want '<src> <dst>'", arg)
	}

	srcAF, srcBytes, srcLen, err := parseAddr(fields[0])
	if err != nil {
		return spec, af, fmt.Errorf("aguriparse: bad filter %q: %w", arg, err)
	}

	dstAF, dstBytes, dstLen, err := parseAddr(fields[1])
	if err != nil {
		return spec, af, fmt.Errorf("aguriparse: bad filter %q: %w", arg, err)
	}

	if srcAF != dstAF {
		return spec, af, fmt.Errorf("aguriparse: bad filter %q: mixed address families", arg)
	}

	spec = agflow.Spec{Src: srcBytes, Dst: dstBytes, SrcLen: srcLen, DstLen: dstLen}

	return spec, srcAF, nil
}

func parseProtoFilter(arg string) (spec agflow.Spec, af agflow.AddrFamily, err error) {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) != 3 {
		return spec, af, fmt.Errorf("aguriparse: bad filter %q: want '<proto>:<sport>:<dport>'", arg)
	}

	srcPort, srcLen, err := parsePort(parts[0], parts[1])
	if err != nil {
		return spec, af, fmt.Errorf("aguriparse: bad filter %q: %w", arg, err)
	}

	dstPort, dstLen, err := parsePort(parts[0], parts[2])
	if err != nil {
		return spec, af, fmt.Errorf("aguriparse: bad filter %q: %w", arg, err)
	}

	spec = agflow.Spec{Src: srcPort, Dst: dstPort, SrcLen: srcLen, DstLen: dstLen}

	return spec, agflow.AddrFamilyProto, nil
}
