package agufmt

import (
	"fmt"
	"strings"

	"github.com/agurim/agurim/internal/agflow"
)

// renderText renders the Aguri re-aggregation text format, grounded on
// util/plot_aguri.c's print_aguri.
func renderText(summary Summary, aggregates []*agflow.Record) (out string) {
	var b strings.Builder

	fmt.Fprintln(&b, "%!AGURI-2.0")
	fmt.Fprintf(&b, "%%%%StartTime: %s\n", timeLocal(summary.Start))
	fmt.Fprintf(&b, "%%%%EndTime: %s\n", timeLocal(summary.End))
	if rate := summary.avgRate(); rate != "" {
		fmt.Fprintf(&b, "%%AvgRate: %s\n", rate)
	}
	fmt.Fprintf(&b, "%% criteria: %s ", summary.basisLabel())
	fmt.Fprintf(&b, "(%.f %% for addresses, %.f %% for protocol data)\n", summary.ThresholdPct, summary.ThresholdPct)
	fmt.Fprintln(&b)

	for i, a := range aggregates {
		fmt.Fprintf(&b, "[%2d] %s", i, specString(a.Spec, a.AF))
		fmt.Fprintf(&b, ": %d (%s)\t%d (%s)\n",
			a.Byte, pct(a.Byte, summary.TotalByte), a.Packet, pct(a.Packet, summary.TotalPacket))

		if len(a.Subflow) == 0 {
			fmt.Fprintln(&b)

			continue
		}

		nestedAF := agflow.AddrFamilyProto
		if a.AF == agflow.AddrFamilyProto {
			nestedAF = agflow.AddrFamilyIPv4
		}

		for _, sub := range a.Subflow {
			fmt.Fprintf(&b, "[%s] %s %s ",
				specString(sub.Spec, nestedAF), pct(sub.Byte, a.Byte), pct(sub.Packet, a.Packet))
		}
		fmt.Fprintln(&b)
	}

	return b.String()
}

func pct(n, total uint64) (s string) {
	if total == 0 {
		return "0.00%"
	}

	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}
