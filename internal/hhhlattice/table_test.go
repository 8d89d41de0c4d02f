package hhhlattice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/hhhlattice"
)

func TestLabels_nonIncreasingSum(t *testing.T) {
	t.Parallel()

	for _, af := range []agflow.AddrFamily{
		agflow.AddrFamilyIPv4,
		agflow.AddrFamilyIPv6,
		agflow.AddrFamilyProto,
	} {
		labels, _ := hhhlattice.Labels(af)

		for i := 1; i < len(labels); i++ {
			assert.GreaterOrEqualf(
				t,
				labels[i-1].Sum(),
				labels[i].Sum(),
				"af %v: label %d (%v) has greater sum than label %d (%v)",
				af, i, labels[i], i-1, labels[i-1],
			)
		}
	}
}

func TestLabels_counts(t *testing.T) {
	t.Parallel()

	v4, _ := hhhlattice.Labels(agflow.AddrFamilyIPv4)
	assert.Len(t, v4, 25)

	v6, _ := hhhlattice.Labels(agflow.AddrFamilyIPv6)
	assert.Len(t, v6, 39)

	proto, _ := hhhlattice.Labels(agflow.AddrFamilyProto)
	assert.Len(t, proto, 5)
}

func TestCanSpawnChildren(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		af      agflow.AddrFamily
		label   hhhlattice.Label
		bitStep uint32
		want    bool
	}{{
		name:    "v4_top_never_spawns",
		af:      agflow.AddrFamilyIPv4,
		label:   hhhlattice.Label{SrcLen: 32, DstLen: 32},
		bitStep: 4,
		want:    false,
	}, {
		name:    "v4_floor_never_spawns",
		af:      agflow.AddrFamilyIPv4,
		label:   hhhlattice.Label{SrcLen: 16, DstLen: 24},
		bitStep: 4,
		want:    false,
	}, {
		name:    "v4_mid_lattice_spawns",
		af:      agflow.AddrFamilyIPv4,
		label:   hhhlattice.Label{SrcLen: 24, DstLen: 24},
		bitStep: 4,
		want:    true,
	}, {
		name:    "odd_bitstep_never_spawns",
		af:      agflow.AddrFamilyIPv4,
		label:   hhhlattice.Label{SrcLen: 24, DstLen: 24},
		bitStep: 1,
		want:    false,
	}, {
		name:    "proto_port_never_spawns",
		af:      agflow.AddrFamilyProto,
		label:   hhhlattice.Label{SrcLen: 8, DstLen: 8},
		bitStep: 4,
		want:    false,
	}, {
		name:    "root_bitstep_zero_still_spawns",
		af:      agflow.AddrFamilyIPv4,
		label:   hhhlattice.Label{SrcLen: 24, DstLen: 24},
		bitStep: 0,
		want:    true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := hhhlattice.CanSpawnChildren(tc.af, tc.label, tc.bitStep)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextBitStep_sequence(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 4, hhhlattice.NextBitStep(0))
	assert.EqualValues(t, 2, hhhlattice.NextBitStep(4))
	assert.EqualValues(t, 1, hhhlattice.NextBitStep(2))
	assert.EqualValues(t, 0, hhhlattice.NextBitStep(1))
}
