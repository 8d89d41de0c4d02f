package hhhengine

import (
	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/flowstore"
	"github.com/agurim/agurim/internal/hhhlattice"
)

// mode distinguishes a task working on the engine's main aggregate list
// from one working on a nested protocol-port (or per-flow, in protocol
// view) sub-aggregation.
type mode uint8

const (
	modeMain mode = iota
	modeSub
)

// task is one unit of lattice-walk work: a target label, the flow slice it
// searches for contributors, and the bookkeeping needed to decide whether
// a candidate aggregate found at this label may spawn further children.
type task struct {
	af    agflow.AddrFamily
	label hhhlattice.Label

	// bitStep is this task's position in the 4 -> 2 -> 1 -> 0 refinement
	// sequence. A root label task starts at bitStep 0; its first child (if
	// any) starts the real refinement chain at bitStep 4.
	bitStep uint32

	// origFlow is the previously-accepted candidate this task refines, or
	// nil for one of the initial per-label root tasks. A kindFinalize
	// task's origFlow is the candidate it will recount and re-threshold.
	origFlow *agflow.Record

	// flows is the flow slice this task searches for contributors:
	// the full sorted snapshot for a root task, or a candidate's own
	// Cache for a refinement task. end bounds the contiguous prefix of
	// it (by binary search, for root tasks) that can possibly contribute.
	flows []*agflow.Record
	end   int

	mode mode
	kind kind

	// hash accumulates truncated aggregates while scanning flows[:end].
	// Allocated fresh per task: harmless at this engine's scale, and
	// avoids aliasing a shared scratch hash across sibling tasks.
	hash *flowstore.Store
}

// queue is the task deque: FIFO at the sibling level, but a spawned child
// is always pushed to the front so its entire sub-lattice drains before
// the next sibling at its parent's level is dequeued.
type queue struct {
	tasks []*task
}

func newQueue() (q *queue) {
	return &queue{}
}

// pushBack enqueues a sibling task (root tasks, and the first task of a
// pass).
func (q *queue) pushBack(t *task) {
	q.tasks = append(q.tasks, t)
}

// pushFront enqueues a child task ahead of everything currently queued.
func (q *queue) pushFront(t *task) {
	q.tasks = append([]*task{t}, q.tasks...)
}

func (q *queue) popFront() (t *task, ok bool) {
	if len(q.tasks) == 0 {
		return nil, false
	}

	t, q.tasks = q.tasks[0], q.tasks[1:]

	return t, true
}

// sortSnapshot orders records by descending (SrcLen+DstLen), breaking ties
// by SrcLen descending, matching the lattice's own visiting order so that
// a binary search for "sum >= target" is valid.
func sortSnapshot(records []*agflow.Record) {
	// Insertion sort: snapshots are drained from a 512-bucket hash, so
	// runs are already near-sorted within each bucket's insertion order.
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && recordLess(records[j], records[j-1]); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

func recordLess(a, b *agflow.Record) (less bool) {
	sumA := int(a.Spec.SrcLen) + int(a.Spec.DstLen)
	sumB := int(b.Spec.SrcLen) + int(b.Spec.DstLen)
	if sumA != sumB {
		return sumA > sumB
	}

	return a.Spec.SrcLen > b.Spec.SrcLen
}

// boundFor returns the end index such that flows[:end] are exactly the
// snapshot entries whose prefix-sum is >= the label's own sum — the only
// entries specific enough to possibly truncate down onto it.
func boundFor(flows []*agflow.Record, label hhhlattice.Label) (end int) {
	target := label.Sum()

	lo, hi := 0, len(flows)
	for lo < hi {
		mid := (lo + hi) / 2
		sum := int(flows[mid].Spec.SrcLen) + int(flows[mid].Spec.DstLen)
		if sum >= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return lo
}
