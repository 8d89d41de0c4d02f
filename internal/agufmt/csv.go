package agufmt

import (
	"fmt"
	"strings"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/hhhengine"
)

// renderCSV renders the CSV debug dump, grounded on util/plot_csv.c's
// print_csv. The aggregate list itself is commented out in the source
// (print_agrflow_list's body is #if 0'd); only the shared "# "-prefixed
// header and the per-bucket time series survive into the emitted data.
func renderCSV(summary Summary, aggregates []*agflow.Record, buckets []hhhengine.Bucket) (out string) {
	var b strings.Builder

	fmt.Fprintf(&b, "# StartTime: %s\n", timeLocal(summary.Start))
	fmt.Fprintf(&b, "# EndTime: %s\n", timeLocal(summary.End))
	if rate := summary.avgRate(); rate != "" {
		fmt.Fprintf(&b, "# AvgRate: %s\n", rate)
	}
	fmt.Fprintf(&b, "# criteria: %s ", summary.basisLabel())
	fmt.Fprintf(&b, "(%.f %% for addresses, %.f %% for protocol data)\n", summary.ThresholdPct, summary.ThresholdPct)
	fmt.Fprintln(&b)

	if len(buckets) == 0 {
		return b.String()
	}

	for _, bk := range buckets {
		fmt.Fprintf(&b, "%d, %d", bk.Start.Unix(), bk.Total)
		for j, c := range bk.PerAggregate {
			if j != len(bk.PerAggregate)-1 {
				fmt.Fprintf(&b, ", %d", c)
			} else {
				fmt.Fprintf(&b, ", %d\n", c)
			}
		}
	}

	return b.String()
}
