package aguriparse

import (
	"fmt"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"

	"github.com/agurim/agurim/internal/agflow"
)

// parseAddr parses one "a.b.c.d[/len]", "h:h:h::[/len]", "*" (v4 wildcard),
// or "*::" (v6 wildcard) token, grounded on the source's create_ip.
func parseAddr(tok string) (af agflow.AddrFamily, out [agflow.MaxLen]byte, length uint8, err error) {
	if tok == "*" {
		return agflow.AddrFamilyIPv4, out, 0, nil
	}
	if tok == "*::" {
		return agflow.AddrFamilyIPv6, out, 0, nil
	}

	ap := tok
	lenStr := ""
	if idx := strings.IndexByte(tok, '/'); idx >= 0 {
		ap = tok[:idx]
		lenStr = tok[idx+1:]
	}

	addr, perr := netip.ParseAddr(ap)
	if perr != nil {
		return agflow.AddrFamilyNone, out, 0, fmt.Errorf("aguriparse: bad address %q: %w", tok, perr)
	}

	if addr.Is4() {
		af = agflow.AddrFamilyIPv4
		length = 32
	} else {
		af = agflow.AddrFamilyIPv6
		length = 128
	}

	if lenStr != "" {
		n, perr := strconv.ParseUint(lenStr, 10, 8)
		if perr != nil {
			return agflow.AddrFamilyNone, out, 0, fmt.Errorf("aguriparse: bad prefix length %q: %w", tok, perr)
		}
		length = uint8(n)
	}

	b := addr.As16()
	if af == agflow.AddrFamilyIPv4 {
		b4 := addr.As4()
		copy(out[:4], b4[:])
	} else {
		copy(out[:], b[:])
	}

	return af, out, length, nil
}

// parsePort parses one proto/port token pair from a protocol-distribution
// entry into the proto-port spec's [proto, port_hi, port_lo] byte layout
// and prefix length, grounded on the source's create_port. A port range
// "lo-hi" is encoded as length = 8 + 17 - ffs(hi-lo+1), clamped to [8, 24].
func parsePort(protoTok, portTok string) (out [agflow.MaxLen]byte, length uint8, err error) {
	if protoTok != "*" {
		n, perr := strconv.ParseUint(protoTok, 10, 8)
		if perr != nil {
			return out, 0, fmt.Errorf("aguriparse: bad protocol %q: %w", protoTok, perr)
		}
		out[0] = byte(n)
	}

	if portTok == "*" {
		if protoTok == "*" {
			return out, 0, nil
		}

		return out, 8, nil
	}

	if lo, hi, ok := strings.Cut(portTok, "-"); ok {
		loVal, perr := strconv.ParseUint(lo, 10, 16)
		if perr != nil {
			return out, 0, fmt.Errorf("aguriparse: bad port range %q: %w", portTok, perr)
		}

		hiVal, perr := strconv.ParseUint(hi, 10, 16)
		if perr != nil {
			return out, 0, fmt.Errorf("aguriparse: bad port range %q: %w", portTok, perr)
		}

		out[1] = byte(loVal >> 8)
		out[2] = byte(loVal & 0xff)

		span := hiVal - loVal + 1
		length = uint8(8 + 17 - ffs(uint32(span)))
		if length < 8 {
			length = 8
		} else if length > 24 {
			length = 24
		}

		return out, length, nil
	}

	val, perr := strconv.ParseUint(portTok, 10, 16)
	if perr != nil {
		return out, 0, fmt.Errorf("aguriparse: bad port %q: %w", portTok, perr)
	}

	if val == 0 {
		if protoTok == "*" {
			return out, 0, nil
		}

		return out, 8, nil
	}

	out[1] = byte(val >> 8)
	out[2] = byte(val & 0xff)

	return out, 24, nil
}

// ffs returns the 1-based index of the least-significant set bit of v, or
// 0 if v is zero, matching C's ffs(3).
func ffs(v uint32) (idx int) {
	if v == 0 {
		return 0
	}

	return bits.TrailingZeros32(v) + 1
}
