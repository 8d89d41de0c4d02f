package hhhengine

import (
	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/flowstore"
	"github.com/agurim/agurim/internal/hhhlattice"
)

// kind distinguishes a task that still has work to scan for candidate
// aggregates from a placeholder that only finalizes a previously accepted
// candidate once its own refinement chain has fully drained.
type kind uint8

const (
	kindScan kind = iota
	kindFinalize
)

// thresholds holds the absolute byte/packet counts an aggregate's counters
// must meet or exceed to be considered a heavy hitter, for one basis.
type thresholds struct {
	basis  agflow.Basis
	byte   uint64
	packet uint64
}

func (th thresholds) met(r *agflow.Record) (ok bool) {
	switch th.basis {
	case agflow.BasisByte:
		return r.Byte >= th.byte
	case agflow.BasisPacket:
		return r.Packet >= th.packet
	default:
		return r.Byte >= th.byte || r.Packet >= th.packet
	}
}

// extractor runs the HHH search described in the prefix lattice walker and
// HHH extractor components: it drains a task queue, applying the threshold
// test to every candidate aggregate and recursing into finer child tasks
// only while an aggregate both remains heavy and has lattice room to
// refine.
type extractor struct {
	af     agflow.AddrFamily
	thresh thresholds
	mode   mode

	// accepted receives finalized aggregates in main mode.
	accepted []*agflow.Record

	// parent receives finalized aggregates as subflows in sub mode.
	parent *agflow.Record

	// nest runs the nested protocol-port (or IP, in protocol view)
	// sub-aggregation over an accepted aggregate's cache. nil is a valid
	// no-op nester, used by tests that only exercise the lattice search.
	nest func(agrflow *agflow.Record)
}

// run drains q to completion, mutating e.accepted (main mode) or e.parent's
// Subflow list (sub mode) as aggregates are finalized.
func (e *extractor) run(q *queue) {
	for {
		t, ok := q.popFront()
		if !ok {
			return
		}

		if t.mode != e.mode {
			// A queue must only ever hold tasks from a single extractor
			// run; this would indicate a construction bug upstream.
			panic("hhhengine: task/extractor mode mismatch")
		}

		if t.kind == kindFinalize {
			e.finalize(t)

			continue
		}

		e.scan(t, q)
	}
}

// scan performs the extractor's two phases for a non-finalizer task:
// build truncated aggregates over the task's bounded flow slice, then
// harvest the ones that clear the threshold.
func (e *extractor) scan(t *task, q *queue) {
	t.hash = flowstore.New()

	for _, flow := range t.flows[:t.end] {
		if flow.Consumed() {
			continue
		}
		if flow.Spec.SrcLen < t.label.SrcLen || flow.Spec.DstLen < t.label.DstLen {
			continue
		}

		truncated := agflow.TruncateSpec(flow.Spec, t.label.SrcLen, t.label.DstLen, flow.AF.ByteSize())

		agg := t.hash.FindOrInsert(truncated, flow.AF)
		agg.AddCounts(flow.Byte, flow.Packet)
		agg.Cache = append(agg.Cache, flow)
	}

	moreTask := e.harvest(t, q)

	if !moreTask && t.origFlow != nil && hhhlattice.CanSpawnChildren(t.af, t.label, t.bitStep) {
		e.spawnChild(t, t.origFlow, q)
	}
}

// harvest drains t's scratch hash, discarding non-heavy candidates and
// routing heavy ones to either a deeper child task or immediate
// finalization. It reports whether any child task was spawned.
func (e *extractor) harvest(t *task, q *queue) (moreTask bool) {
	for _, agg := range t.hash.Drain() {
		if !e.thresh.met(agg) {
			continue
		}

		if hhhlattice.CanSpawnChildren(t.af, t.label, t.bitStep) {
			e.spawnChild(t, agg, q)
			moreTask = true

			continue
		}

		e.accept(agg)
	}

	return moreTask
}

// accept runs nested sub-aggregation over agg, flushes its cache so its
// contributors can no longer promote a coarser pending aggregate, and
// files it into the accepted list (main mode) or the enclosing aggregate's
// subflow list (sub mode).
func (e *extractor) accept(agg *agflow.Record) {
	if e.nest != nil {
		e.nest(agg)
	}
	agg.FlushCache()

	if e.mode == modeMain {
		e.accepted = append(e.accepted, agg)
	} else {
		e.parent.AddSubflow(agg)
	}
}

// finalize re-derives a placeholder task's candidate's counters from its
// (possibly now partially consumed) cache and re-applies the threshold
// test: a deeper child task may have promoted some of the candidate's
// contributors into a finer aggregate, invalidating its own significance.
func (e *extractor) finalize(t *task) {
	if t.origFlow == nil {
		return
	}

	t.origFlow.Recount()
	if e.thresh.met(t.origFlow) {
		e.accept(t.origFlow)
	}
}

// spawnChild implements add_child_task: a task at bit-step 0 additionally
// gets a finalizer placeholder queued just behind its refinement chain, so
// that candidate's significance is re-checked once that chain fully
// drains. A genuine refinement child is queued only while the candidate
// still has more than one contributor and the lattice has room left.
func (e *extractor) spawnChild(t *task, candidate *agflow.Record, q *queue) {
	if t.bitStep == 0 {
		q.pushFront(&task{
			af:       t.af,
			label:    t.label,
			bitStep:  0,
			origFlow: candidate,
			mode:     t.mode,
			kind:     kindFinalize,
		})
	}

	childBitStep := hhhlattice.NextBitStep(t.bitStep)
	if len(candidate.Cache) <= 1 || childBitStep == 0 {
		return
	}

	childLabel := hhhlattice.ChildLabel(t.af, t.label, int(childBitStep)-int(t.bitStep))

	q.pushFront(&task{
		af:       t.af,
		label:    childLabel,
		bitStep:  childBitStep,
		origFlow: candidate,
		flows:    candidate.Cache,
		end:      len(candidate.Cache),
		mode:     t.mode,
		kind:     kindScan,
	})
}
