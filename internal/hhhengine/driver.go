// Package hhhengine implements the two-pass HHH driver: task-queue-driven
// prefix lattice search (the extractor, task.go) wired to per-address-family
// root task construction, nested protocol-port sub-aggregation, and the
// plotting-interval calculation used by the pass-2 re-scan.
package hhhengine

import (
	"sort"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/flowstore"
	"github.com/agurim/agurim/internal/hhhlattice"
)

// Params configures one discovery run: the counter basis and threshold
// percentage used by the threshold test.
type Params struct {
	Basis           agflow.Basis
	ThresholdPct    float64
	SubThresholdPct float64
}

// Discover runs pass 1 (component D) for a single address family: it
// drains store into a sorted snapshot, builds one root task per lattice
// label (in the table's fixed non-increasing-sum order), and drives the
// extractor to completion. Each accepted aggregate has already had its
// nested protocol-port (or IP, in protocol view) sub-aggregation run over
// its cache, populating its Subflow list.
func Discover(store *flowstore.Store, af agflow.AddrFamily, params Params) (accepted []*agflow.Record) {
	snapshot := store.Drain()
	if len(snapshot) == 0 {
		return nil
	}

	sortSnapshot(snapshot)

	totalByte, totalPacket := uint64(0), uint64(0)
	for _, r := range snapshot {
		totalByte += r.Byte
		totalPacket += r.Packet
	}

	e := &extractor{
		af:   af,
		mode: modeMain,
		thresh: thresholds{
			basis:  params.Basis,
			byte:   scalePct(totalByte, params.ThresholdPct),
			packet: scalePct(totalPacket, params.ThresholdPct),
		},
	}
	e.nest = func(agrflow *agflow.Record) {
		runNested(e, agrflow, af, params)
	}

	q := newQueue()
	for _, label := range tableFor(af) {
		q.pushBack(&task{
			af:      af,
			label:   label,
			bitStep: 0,
			flows:   snapshot,
			end:     boundFor(snapshot, label),
			mode:    modeMain,
			kind:    kindScan,
		})
	}

	e.run(q)

	return e.accepted
}

// runNested implements hhh_submain: it gathers agrflow's contributors'
// per-flow subflow breakdowns into a scratch store, computes an
// independently-derived threshold against that sub-universe's totals, and
// runs the extractor over it in sub mode, filing results directly into
// agrflow.Subflow.
func runNested(parentExtractor *extractor, agrflow *agflow.Record, parentAF agflow.AddrFamily, params Params) {
	nestedAF := agflow.AddrFamilyProto
	if parentAF == agflow.AddrFamilyProto {
		// Protocol view: the nested universe is the contributing flows'
		// own IP addresses rather than proto/port.
		nestedAF = agflow.AddrFamilyIPv4
	}

	sub := flowstore.New()
	var totalByte, totalPacket uint64
	for _, flow := range agrflow.Cache {
		for _, s := range flow.Subflow {
			sub.Add(&agflow.Record{Spec: s.Spec, AF: nestedAF, Byte: s.Byte, Packet: s.Packet})
		}
		totalByte += flow.Byte
		totalPacket += flow.Packet
	}
	if sub.Len() == 0 {
		return
	}

	snapshot := sub.Drain()
	sortSnapshot(snapshot)

	e := &extractor{
		af:     nestedAF,
		mode:   modeSub,
		parent: agrflow,
		thresh: thresholds{
			basis:  parentExtractor.thresh.basis,
			byte:   scalePct(totalByte, params.SubThresholdPct),
			packet: scalePct(totalPacket, params.SubThresholdPct),
		},
	}

	q := newQueue()
	for _, label := range tableFor(nestedAF) {
		q.pushBack(&task{
			af:      nestedAF,
			label:   label,
			bitStep: 0,
			flows:   snapshot,
			end:     boundFor(snapshot, label),
			mode:    modeSub,
			kind:    kindScan,
		})
	}

	e.run(q)
}

func tableFor(af agflow.AddrFamily) (labels []hhhlattice.Label) {
	labels, _ = hhhlattice.Labels(af)

	return labels
}

func scalePct(total uint64, pct float64) (threshold uint64) {
	return uint64(float64(total) * pct / 100)
}

// PlottingInterval computes the pass-2 re-scan bucket width, in seconds,
// from the spanned duration of the analysis window. d is the span
// expressed in hours, rounded up; the table's own thresholds are
// expressed in d and in d's day/month equivalents (d/24, d/744).
func PlottingInterval(spanSeconds int64) (seconds int64) {
	d := ceilDiv(spanSeconds, 3600)

	switch {
	case d <= 24:
		return min64(d*30, 600)
	case d/24 <= 7:
		return min64(d*600, 3600)
	case d/24 <= 31:
		return 14400
	case d/744 <= 12:
		return min64(d*14400, 86400)
	default:
		return 86400
	}
}

func ceilDiv(a, b int64) (q int64) {
	return (a + b - 1) / b
}

func min64(a, b int64) (m int64) {
	if a < b {
		return a
	}

	return b
}

// sortRecordsBySpec orders records by descending prefix-length sum, then
// descending SrcLen, keeping records with equal lengths in their incoming
// order so formatter output is reproducible.
func sortRecordsBySpec(records []*agflow.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return recordLess(records[i], records[j])
	})
}
