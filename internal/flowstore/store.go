// Package flowstore implements the per-address-family flow hash: a
// fixed-width chained hash table keyed on (src-prefix, dst-prefix) bytes
// that the prefix lattice walker snapshots and the HHH extractor mutates.
package flowstore

import (
	"github.com/agurim/agurim/internal/agflow"
)

// NumBuckets is the number of chains in the hash table. 512 buckets suffice
// for the flow cardinalities this engine is built for.
const NumBuckets = 512

// Store is a fixed-width chained hash of [agflow.Record], keyed by the
// concatenation of a spec's src and dst bytes. A Store exclusively owns
// every record it holds until the record is removed by [Store.Drain].
type Store struct {
	buckets [NumBuckets][]*agflow.Record
	size    int
	byte    uint64
	packet  uint64
}

// New returns an empty Store.
func New() (s *Store) {
	return &Store{}
}

// Len reports the number of records currently held.
func (s *Store) Len() (n int) {
	return s.size
}

// Totals reports the sum of byte/packet counters over every record ever
// added to the store (including ones since drained), mirroring the
// source's running phash->byte/packet accumulators.
func (s *Store) Totals() (byte, packet uint64) {
	return s.byte, s.packet
}

// slot mixes the first four bytes of src and dst the way the source's
// calc_slot does (a Bob Jenkins "Algorithm Alley" mix), folding the result
// into its low 9 bits (one of NumBuckets buckets).
func slot(src, dst [agflow.MaxLen]byte) (idx uint32) {
	a := uint32(0x9e3779b9) + uint32(dst[3]) + uint32(dst[2])<<24 + uint32(dst[1])<<16 + uint32(dst[0])<<8
	b := uint32(0x9e3779b9) + uint32(src[3]) + uint32(src[2])<<24 + uint32(src[1])<<16 + uint32(src[0])<<8
	var c uint32

	a, b, c = mix(a, b, c)

	return c & (NumBuckets - 1)
}

// mix is the Bob Jenkins integer hash mix ("Algorithm Alley", Dr. Dobbs
// Journal, September 1997) used verbatim by the original C odflow_hash.
func mix(a, b, c uint32) (ra, rb, rc uint32) {
	a -= b
	a -= c
	a ^= c >> 13
	b -= c
	b -= a
	b ^= a << 8
	c -= a
	c -= b
	c ^= b >> 13
	a -= b
	a -= c
	a ^= c >> 12
	b -= c
	b -= a
	b ^= a << 16
	c -= a
	c -= b
	c ^= b >> 5
	a -= b
	a -= c
	a ^= c >> 3
	b -= c
	b -= a
	b ^= a << 10
	c -= a
	c -= b
	c ^= b >> 15

	return a, b, c
}

// FindOrInsert returns the record matching spec, allocating and inserting a
// zero-valued one at the bucket head if none exists. It never returns nil.
func (s *Store) FindOrInsert(spec agflow.Spec, af agflow.AddrFamily) (r *agflow.Record) {
	idx := slot(spec.Src, spec.Dst)
	for _, r := range s.buckets[idx] {
		if r.Spec.Equal(spec) {
			return r
		}
	}

	r = agflow.NewRecord(spec, af)
	s.buckets[idx] = append([]*agflow.Record{r}, s.buckets[idx]...)
	s.size++

	return r
}

// Add accumulates r's counters into the stored record matching r's spec,
// inserting r itself if no match exists. It reports whether r was a
// duplicate (in which case r was not retained by the store).
func (s *Store) Add(r *agflow.Record) (wasDuplicate bool) {
	idx := slot(r.Spec.Src, r.Spec.Dst)
	for _, existing := range s.buckets[idx] {
		if existing.Spec.Equal(r.Spec) {
			existing.AddCounts(r.Byte, r.Packet)
			s.byte += r.Byte
			s.packet += r.Packet

			return true
		}
	}

	s.buckets[idx] = append([]*agflow.Record{r}, s.buckets[idx]...)
	s.size++
	s.byte += r.Byte
	s.packet += r.Packet

	return false
}

// Drain removes every record from the store and returns them in bucket
// order (0..NumBuckets-1), and within a bucket in chain order, most recently
// inserted first (records are inserted at the bucket head) — the snapshot
// order the lattice walker sorts by prefix-sum before its binary search.
func (s *Store) Drain() (records []*agflow.Record) {
	if s.size == 0 {
		return nil
	}

	records = make([]*agflow.Record, 0, s.size)
	for i := range s.buckets {
		records = append(records, s.buckets[i]...)
		s.buckets[i] = nil
	}
	s.size = 0

	return records
}

// Reset frees all records held by the store.
func (s *Store) Reset() {
	for i := range s.buckets {
		s.buckets[i] = nil
	}
	s.size = 0
	s.byte = 0
	s.packet = 0
}
