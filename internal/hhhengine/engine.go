package hhhengine

import (
	"fmt"
	"time"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/engfault"
	"github.com/agurim/agurim/internal/flowstore"
)

// View selects whether the primary aggregation key is the IP address pair
// (with a nested protocol/port breakdown per aggregate) or the
// protocol/port pair (with a nested IP breakdown).
type View uint8

const (
	// AddressView aggregates on (src-prefix, dst-prefix); each accepted
	// aggregate's Subflow list holds its heavy protocol/port breakdown.
	AddressView View = iota

	// ProtocolView aggregates on (proto, port); each accepted aggregate's
	// Subflow list holds its heavy IP breakdown.
	ProtocolView
)

// Config parameterizes one Engine: the counter basis, the threshold
// percentages for the primary and nested aggregation passes, and the
// view.
type Config struct {
	Basis           agflow.Basis
	ThresholdPct    float64
	SubThresholdPct float64
	View            View
	MaxAggregates   int
}

// Engine drives the two-pass HHH search over one aggregation boundary's
// worth of inserted flows: pass 1 discovers the aggregate skeleton, pass 2
// (driven separately, via [Engine.NewPlotAccumulator]) re-bins a second scan of the same
// inputs onto that skeleton at plotting resolution.
type Engine struct {
	cfg Config

	v4Store    *flowstore.Store
	v6Store    *flowstore.Store
	protoStore *flowstore.Store

	// accepted is the ordered aggregate list produced by the most recent
	// call to [Engine.Discover]. ListIndex on each record indexes this
	// slice, and is what pass 2's overlap lookup resolves against.
	accepted []*agflow.Record
}

// New returns an Engine ready to accept flows for one aggregation
// boundary.
func New(cfg Config) (e *Engine) {
	return &Engine{
		cfg:        cfg,
		v4Store:    flowstore.New(),
		v6Store:    flowstore.New(),
		protoStore: flowstore.New(),
	}
}

// Insert files a flow into the primary store appropriate for its address
// family and af, accumulating onto any existing record with the same
// spec.
func (e *Engine) Insert(r *agflow.Record) {
	switch r.AF {
	case agflow.AddrFamilyIPv4:
		e.v4Store.Add(r)
	case agflow.AddrFamilyIPv6:
		e.v6Store.Add(r)
	default:
		e.protoStore.Add(r)
	}
}

// Discover runs pass 1: it drains whichever stores hold the primary view
// for the configured View, runs discovery independently per address
// family (each AF's heavy hitters cannot promote across the other AF's
// lattice), and returns the combined, list-index-assigned aggregate list.
func (e *Engine) Discover() (accepted []*agflow.Record) {
	params := Params{
		Basis:           e.cfg.Basis,
		ThresholdPct:    e.cfg.ThresholdPct,
		SubThresholdPct: e.cfg.SubThresholdPct,
	}

	if e.cfg.View == ProtocolView {
		accepted = Discover(e.protoStore, agflow.AddrFamilyProto, params)
	} else {
		accepted = append(accepted, Discover(e.v4Store, agflow.AddrFamilyIPv4, params)...)
		accepted = append(accepted, Discover(e.v6Store, agflow.AddrFamilyIPv6, params)...)
	}

	sortRecordsBySpec(accepted)

	if e.cfg.MaxAggregates > 0 && len(accepted) > e.cfg.MaxAggregates {
		accepted = accepted[:e.cfg.MaxAggregates]
	}

	for i, a := range accepted {
		a.ListIndex = i
	}

	e.accepted = accepted

	return accepted
}

// Bucket is one plotting-resolution time slot's worth of re-accumulated
// counts, one entry per accepted aggregate (by ListIndex) plus the bucket
// total.
type Bucket struct {
	Start        time.Time
	Total        uint64
	PerAggregate []uint64
}

// PlotAccumulator re-bins a pass-2 re-scan of the original inputs onto the
// fixed aggregate skeleton [Engine.Discover] produced, advancing to a new
// [Bucket] every time a flow's timestamp crosses the plotting interval
// boundary.
type PlotAccumulator struct {
	aggregates []*agflow.Record
	interval   time.Duration
	basis      agflow.Basis

	buckets     []Bucket
	cur         *Bucket
	bucketStart time.Time
}

// NewPlotAccumulator returns an accumulator bucketing onto the aggregates
// e.Discover most recently produced.
func (e *Engine) NewPlotAccumulator(start time.Time, interval time.Duration) (acc *PlotAccumulator) {
	return &PlotAccumulator{
		aggregates:  e.accepted,
		interval:    interval,
		basis:       e.cfg.Basis,
		bucketStart: start,
	}
}

// Add assigns byte/packet counts at ts to whichever accepted aggregate
// overlaps spec, advancing the bucket window as needed. The bucketed
// metric follows the accumulator's configured basis: byte count for
// basis byte or combination, packet count for basis packet. It is a fatal
// invariant violation for no aggregate to overlap spec: the root
// aggregate (srclen=0, dstlen=0) is guaranteed to match every flow, so a
// miss here means the aggregate skeleton from pass 1 is incomplete.
func (acc *PlotAccumulator) Add(spec agflow.Spec, byteCount, packetCount uint64, ts time.Time) {
	for ts.Sub(acc.bucketStart) >= acc.interval {
		acc.closeBucket()
		acc.bucketStart = acc.bucketStart.Add(acc.interval)
	}
	if acc.cur == nil {
		acc.openBucket()
	}

	idx := acc.overlapIndex(spec)

	count := byteCount
	if acc.basis == agflow.BasisPacket {
		count = packetCount
	}

	acc.cur.PerAggregate[idx] += count
	acc.cur.Total += count
}

func (acc *PlotAccumulator) overlapIndex(spec agflow.Spec) (idx int) {
	for _, a := range acc.aggregates {
		if agflow.IsOverlapped(a.Spec, spec) {
			return a.ListIndex
		}
	}

	engfault.Raise("pass2/overlap", "no accepted aggregate overlaps flow "+specDebugString(spec))

	return -1
}

func (acc *PlotAccumulator) openBucket() {
	acc.cur = &Bucket{
		Start:        acc.bucketStart,
		PerAggregate: make([]uint64, len(acc.aggregates)),
	}
}

func (acc *PlotAccumulator) closeBucket() {
	if acc.cur != nil {
		acc.buckets = append(acc.buckets, *acc.cur)
	}
	acc.openBucket()
}

// Finish closes out any open bucket and returns every completed bucket in
// chronological order.
func (acc *PlotAccumulator) Finish() (buckets []Bucket) {
	acc.closeBucket()

	return acc.buckets
}

func specDebugString(spec agflow.Spec) (s string) {
	return fmt.Sprintf("(/%d, /%d)", spec.SrcLen, spec.DstLen)
}
