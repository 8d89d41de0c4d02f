package agufmt

import (
	"fmt"
	"strings"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/hhhengine"
)

// renderJSON renders the JSON summary/time-series format, grounded on
// util/plot_json.c's print_json. Each aggregate is listed with its spec,
// counters, and subflow breakdown; when buckets is non-nil (plotting
// output), a "series" array of [timestamp, total, cnt_0, ..., cnt_{n-1}]
// rows is appended.
func renderJSON(summary Summary, aggregates []*agflow.Record, buckets []hhhengine.Bucket) (out string) {
	var b strings.Builder

	fmt.Fprintln(&b, "{")
	fmt.Fprintf(&b, "  \"StartTime\": %d,\n", summary.Start.Unix())
	fmt.Fprintf(&b, "  \"EndTime\": %d,\n", summary.End.Unix())
	if rate := summary.avgRate(); rate != "" {
		fmt.Fprintf(&b, "  \"AvgRate\": %q,\n", rate)
	}
	fmt.Fprintf(&b, "  \"criteria\": %q,\n", jsonBasis(summary.Basis))
	fmt.Fprintf(&b, "  \"threshold\": %.f,\n", summary.ThresholdPct)

	fmt.Fprintln(&b, "  \"aggregates\": [")
	for i, a := range aggregates {
		comma := ","
		if i == len(aggregates)-1 {
			comma = ""
		}
		fmt.Fprintf(&b, "    {\"spec\": %q, \"byte\": %d, \"packet\": %d, \"subflow\": [",
			specString(a.Spec, a.AF), a.Byte, a.Packet)

		nestedAF := agflow.AddrFamilyProto
		if a.AF == agflow.AddrFamilyProto {
			nestedAF = agflow.AddrFamilyIPv4
		}
		for j, sub := range a.Subflow {
			subComma := ","
			if j == len(a.Subflow)-1 {
				subComma = ""
			}
			fmt.Fprintf(&b, "{\"spec\": %q, \"byte\": %d, \"packet\": %d}%s",
				specString(sub.Spec, nestedAF), sub.Byte, sub.Packet, subComma)
		}
		fmt.Fprintf(&b, "]}%s\n", comma)
	}
	if len(buckets) > 0 {
		fmt.Fprintln(&b, "  ],")
	} else {
		fmt.Fprintln(&b, "  ]")
	}

	if len(buckets) > 0 {
		fmt.Fprintln(&b, "  \"series\": [")
		for i, bk := range buckets {
			comma := ","
			if i == len(buckets)-1 {
				comma = ""
			}
			fmt.Fprintf(&b, "    [%d, %d", bk.Start.Unix(), bk.Total)
			for _, c := range bk.PerAggregate {
				fmt.Fprintf(&b, ", %d", c)
			}
			fmt.Fprintf(&b, "]%s\n", comma)
		}
		fmt.Fprintln(&b, "  ]")
	}

	fmt.Fprintln(&b, "}")

	return b.String()
}

func jsonBasis(basis agflow.Basis) (s string) {
	switch basis {
	case agflow.BasisByte:
		return "byte"
	case agflow.BasisPacket:
		return "packet"
	case agflow.BasisCombination:
		return "combination"
	default:
		return "unknown"
	}
}
