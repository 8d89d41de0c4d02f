package agflow

// Record is a single flow record: a [Spec] plus its traffic counters and the
// bookkeeping the HHH engine needs during aggregation.
//
// A Record living in a [flowstore] hash is exclusively owned by that hash.
// Cache is a non-owning back-reference list: a finer Record may be
// referenced from more than one aggregate's Cache simultaneously.
type Record struct {
	Spec Spec
	AF   AddrFamily

	Byte   uint64
	Packet uint64

	// Cache lists the finer flows that were truncated into this record
	// during lattice aggregation. Populated only on records produced by the
	// lattice walker (never on records as first inserted by the parser).
	// Cache owns none of its elements.
	Cache []*Record

	// Subflow is the nested protocol-port (or, in protocol view, IP)
	// aggregation accepted under this record. Subflow owns its elements.
	Subflow []*Record

	// ListIndex is this record's position in the accepted aggregate list,
	// assigned once pass 1 completes.
	ListIndex int

	// consumed marks a record whose counters have been folded into an
	// accepted coarser aggregate. A consumed record must not contribute to
	// any aggregate still pending in the task queue. This is the explicit
	// flag DESIGN.md substitutes for the source's zero-the-counters hack.
	consumed bool
}

// NewRecord returns a zero-valued record for spec/af.
func NewRecord(spec Spec, af AddrFamily) (r *Record) {
	return &Record{Spec: spec, AF: af}
}

// AddCounts adds byte and packet to r's counters.
func (r *Record) AddCounts(byte, packet uint64) {
	r.Byte += byte
	r.Packet += packet
}

// Consumed reports whether r has been folded into a coarser accepted
// aggregate and must no longer contribute to lattice aggregation.
func (r *Record) Consumed() (ok bool) {
	return r.consumed
}

// MarkConsumed flags r as folded into an accepted aggregate. It does not
// zero r's counters: callers that need the pre-consumption values (pass-2
// re-scan, diagnostics) can still read them.
func (r *Record) MarkConsumed() {
	r.consumed = true
}

// FlushCache marks every record referenced by r's cache as consumed, so
// they can no longer promote a coarser aggregate still in the task queue.
// The cache slice itself is retained for the pass-2 re-scan.
func (r *Record) FlushCache() {
	for _, c := range r.Cache {
		c.MarkConsumed()
	}
}

// Recount recomputes r's Byte/Packet counters from the sum of its cache's
// records that are not yet consumed. Used when a parent task is revisited
// after spawning children: a child may have invalidated the parent's
// significance.
func (r *Record) Recount() {
	var byte, packet uint64
	for _, c := range r.Cache {
		if c.Consumed() {
			continue
		}
		byte += c.Byte
		packet += c.Packet
	}
	r.Byte = byte
	r.Packet = packet
}

// AddSubflow accumulates sub's counters into r's nested subflow list,
// inserting a new entry keyed by spec equality if none exists yet.
func (r *Record) AddSubflow(sub *Record) {
	for _, existing := range r.Subflow {
		if existing.Spec.Equal(sub.Spec) {
			existing.AddCounts(sub.Byte, sub.Packet)

			return
		}
	}

	clone := &Record{Spec: sub.Spec, AF: sub.AF}
	clone.AddCounts(sub.Byte, sub.Packet)
	r.Subflow = append(r.Subflow, clone)
}
