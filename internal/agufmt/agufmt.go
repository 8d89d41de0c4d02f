// Package agufmt formats accepted HHH aggregates (and, for time-series
// outputs, their pass-2 plotting buckets) into the three output targets
// the original tool supports: Aguri re-aggregation text, JSON, and CSV
// debug dump. All three share an identical summary header (StartTime,
// EndTime, an auto-ranged AvgRate, the counter basis, and the threshold).
package agufmt

import (
	"fmt"
	"os"
	"strings"
	"time"

	renameio "github.com/google/renameio/v2"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/hhhengine"
)

// Format selects an output target.
type Format uint8

// Supported output formats.
const (
	// FormatText is the Aguri re-aggregation text format (print_aguri).
	FormatText Format = iota
	// FormatJSON is the JSON time-series/summary format (print_json).
	FormatJSON
	// FormatCSV is the CSV debug dump (print_csv).
	FormatCSV
)

// Summary is the shared report header: the analysis window, running
// totals, and the parameters the threshold test was run under.
type Summary struct {
	Start        time.Time
	End          time.Time
	TotalByte    uint64
	TotalPacket  uint64
	Basis        agflow.Basis
	ThresholdPct float64
}

// basisLabel names Summary.Basis the way each formatter's print_agurim_basis
// does.
func (s Summary) basisLabel() (label string) {
	switch s.Basis {
	case agflow.BasisByte:
		return "byte counter"
	case agflow.BasisPacket:
		return "pkt counter"
	case agflow.BasisCombination:
		return "combination"
	default:
		return "unknown"
	}
}

// avgRate renders the average bit- and packet-rate over the analysis
// window, auto-ranging the bit-rate unit so its mantissa stays under 1000,
// grounded on plot_aguri.c's print_traffic_rate. It returns "" if the
// window has zero duration (matching the source's early return).
func (s Summary) avgRate() (rate string) {
	secs := s.End.Sub(s.Start).Seconds()
	if secs <= 0 {
		return ""
	}

	avgBit := float64(s.TotalByte) * 8 / secs
	avgPkt := float64(s.TotalPacket) / secs

	switch {
	case avgBit > 1_000_000_000:
		return fmt.Sprintf("%.2fGbps %.2fpps", avgBit/1_000_000_000, avgPkt)
	case avgBit > 1_000_000:
		return fmt.Sprintf("%.2fMbps %.2fpps", avgBit/1_000_000, avgPkt)
	case avgBit > 1_000:
		return fmt.Sprintf("%.2fKbps %.2fpps", avgBit/1_000, avgPkt)
	default:
		return fmt.Sprintf("%.2fbps %.2fpps", avgBit, avgPkt)
	}
}

// Write renders aggregates (and, when non-nil, the pass-2 plotting
// buckets) in format and atomically writes the result to path via
// renameio, so a crash mid-write never leaves a truncated report on disk.
// A path of "-" writes the result to stdout instead.
func Write(
	path string,
	format Format,
	summary Summary,
	aggregates []*agflow.Record,
	buckets []hhhengine.Bucket,
) (err error) {
	var body string

	switch format {
	case FormatJSON:
		body = renderJSON(summary, aggregates, buckets)
	case FormatCSV:
		body = renderCSV(summary, aggregates, buckets)
	default:
		body = renderText(summary, aggregates)
	}

	if path == "-" {
		if _, err = os.Stdout.WriteString(body); err != nil {
			return fmt.Errorf("agufmt: writing to stdout: %w", err)
		}

		return nil
	}

	err = renameio.WriteFile(path, []byte(body), 0o644)
	if err != nil {
		return fmt.Errorf("agufmt: writing %s: %w", path, err)
	}

	return nil
}

func timeLocal(t time.Time) (s string) {
	return t.Local().Format("Mon Jan _2 15:04:05 2006")
}

func specString(spec agflow.Spec, af agflow.AddrFamily) (s string) {
	switch af {
	case agflow.AddrFamilyProto:
		return fmt.Sprintf("[%s:%s:%s]", protoString(spec), portString(spec, false), portString(spec, true))
	default:
		return fmt.Sprintf("%s %s", addrString(spec.Src, spec.SrcLen, af), addrString(spec.Dst, spec.DstLen, af))
	}
}

func addrString(b [agflow.MaxLen]byte, length uint8, af agflow.AddrFamily) (s string) {
	if length == 0 {
		if af == agflow.AddrFamilyIPv6 {
			return "*::"
		}

		return "*"
	}

	if af == agflow.AddrFamilyIPv4 {
		ip := fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
		if length < 32 {
			return fmt.Sprintf("%s/%d", ip, length)
		}

		return ip
	}

	parts := make([]string, 8)
	for i := 0; i < 8; i++ {
		parts[i] = fmt.Sprintf("%02x%02x", b[i*2], b[i*2+1])
	}
	ip := strings.Join(parts, ":")
	if length < 128 {
		return fmt.Sprintf("%s/%d", ip, length)
	}

	return ip
}

func protoString(spec agflow.Spec) (s string) {
	if spec.Src[0] == 0 {
		return "*"
	}

	return fmt.Sprintf("%d", spec.Src[0])
}

func portString(spec agflow.Spec, dst bool) (s string) {
	b, length := spec.Src, spec.SrcLen
	if dst {
		b, length = spec.Dst, spec.DstLen
	}

	port := int(b[1])<<8 + int(b[2])
	if port == 0 {
		return "*"
	}
	if length < 24 {
		end := port + (1 << (24 - length)) - 1

		return fmt.Sprintf("%d-%d", port, end)
	}

	return fmt.Sprintf("%d", port)
}
