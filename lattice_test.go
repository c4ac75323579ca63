package aio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatticeHalfbandDCGain(t *testing.T) {
	for _, kind := range []HalfbandKind{HALFBAND_LW5, HALFBAND_LW9, HALFBAND_LW13} {
		t.Run(kind.String(), func(t *testing.T) {
			h := newLatticeHalfband(kind)
			require.NotNil(t, h)

			const x = int64(1) << 24

			var y int64
			for i := 0; i < 300; i++ {
				y = h.step(x, x)
			}

			assert.InDelta(t, float64(x), float64(y), 2)
		})
	}

	assert.Nil(t, newLatticeHalfband(HALFBAND_NONE))
}

func TestLatticeHalfbandRejectsNyquist(t *testing.T) {
	h := newLatticeHalfband(HALFBAND_LW9)

	// Input at fs/2 alternates sign between even and odd samples.
	const x = int64(1) << 24

	var peak int64
	for i := 0; i < 400; i++ {
		y := h.step(x, -x)
		if i > 200 && abs64(y) > peak {
			peak = abs64(y)
		}
	}

	assert.Less(t, peak, x/100)
}

func TestLatticeReset(t *testing.T) {
	h := newLatticeHalfband(HALFBAND_LW13)
	a := h.step(1<<20, 1<<21)

	h.step(5, 7)
	h.reset()

	assert.Equal(t, a, h.step(1<<20, 1<<21))
}

func TestToQ28(t *testing.T) {
	assert.Equal(t, int64(1)<<27, toQ28(0.5))
	assert.Equal(t, int64(0), toQ28(0))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
