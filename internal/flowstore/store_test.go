package flowstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/flowstore"
)

func mkSpec(a, b byte, length uint8) (s agflow.Spec) {
	s.Src[0] = a
	s.Dst[0] = b
	s.SrcLen = length
	s.DstLen = length

	return s
}

func TestStore_FindOrInsert_dedup(t *testing.T) {
	t.Parallel()

	s := flowstore.New()
	spec := mkSpec(10, 20, 32)

	r1 := s.FindOrInsert(spec, agflow.AddrFamilyIPv4)
	r2 := s.FindOrInsert(spec, agflow.AddrFamilyIPv4)

	require.Same(t, r1, r2)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Add_accumulatesOnDuplicate(t *testing.T) {
	t.Parallel()

	s := flowstore.New()
	spec := mkSpec(10, 20, 32)

	first := agflow.NewRecord(spec, agflow.AddrFamilyIPv4)
	first.AddCounts(100, 1)
	s.Add(first)

	second := agflow.NewRecord(spec, agflow.AddrFamilyIPv4)
	second.AddCounts(50, 1)
	wasDup := s.Add(second)

	require.True(t, wasDup)
	assert.Equal(t, 1, s.Len())

	drained := s.Drain()
	require.Len(t, drained, 1)
	assert.EqualValues(t, 150, drained[0].Byte)
	assert.EqualValues(t, 2, drained[0].Packet)
}

func TestStore_Drain_empties(t *testing.T) {
	t.Parallel()

	s := flowstore.New()
	s.FindOrInsert(mkSpec(1, 2, 32), agflow.AddrFamilyIPv4)
	s.FindOrInsert(mkSpec(3, 4, 32), agflow.AddrFamilyIPv4)

	drained := s.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Drain())
}
