package agflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agurim/agurim/internal/agflow"
)

func TestTruncate_idempotent(t *testing.T) {
	t.Parallel()

	var src [agflow.MaxLen]byte
	copy(src[:], []byte{10, 20, 30, 40})

	once := agflow.Truncate(src, 20, 4)
	twice := agflow.Truncate(once, 20, 4)

	assert.Equal(t, once, twice)
}

func TestIsOverlapped(t *testing.T) {
	t.Parallel()

	mk := func(src [4]byte, srcLen uint8) (s agflow.Spec) {
		copy(s.Src[:], src[:])
		s.SrcLen = srcLen

		return s
	}

	testCases := []struct {
		name string
		p, q agflow.Spec
		want bool
	}{{
		name: "root_matches_everything",
		p:    agflow.Spec{},
		q:    mk([4]byte{10, 0, 0, 1}, 32),
		want: true,
	}, {
		name: "same_slash24",
		p:    mk([4]byte{10, 0, 0, 0}, 24),
		q:    mk([4]byte{10, 0, 0, 5}, 32),
		want: true,
	}, {
		name: "different_slash24",
		p:    mk([4]byte{10, 0, 0, 0}, 24),
		q:    mk([4]byte{10, 0, 1, 5}, 32),
		want: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, agflow.IsOverlapped(tc.p, tc.q))
		})
	}
}

func TestSpec_Equal_lengthSensitive(t *testing.T) {
	t.Parallel()

	var a, b agflow.Spec
	a.Src[0], b.Src[0] = 10, 10
	a.SrcLen, b.SrcLen = 24, 32

	assert.False(t, a.Equal(b))
}
