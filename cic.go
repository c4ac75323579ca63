package aio

import (
	"fmt"
	"math/bits"
)

const (
	q28Shift = 28
	q28Max   = int64(1)<<q28Shift - 1
	q28Min   = -(int64(1) << q28Shift)
)

// CICDecimator converts 1-bit PDM to PCM for one channel.
//
// In the optimized configurations the integrator-comb cascade decimates by factor/2 and a
// lattice halfband stage supplies the final factor of two. Any other factor/order pair
// runs the plain cascade over the full factor. State persists across Process calls.
type CICDecimator struct {
	factor   int
	order    int
	cicRatio int
	shift    int // left shift from cascade gain to Q28, negative shifts right
	integ    [5]int64
	comb     [5]int64
	halfband *latticeHalfband
}

// NewCICDecimator returns a decimator for factor in {32, 64, 128} and order in {4, 5}.
// The pairs (128, 4) and (64, 5) get the halfband path with the lw13 and lw9 sets.
func NewCICDecimator(factor, order int) (*CICDecimator, error) {
	switch {
	case factor == 128 && order == 4:
		return newCIC(factor, order, HALFBAND_LW13)
	case factor == 64 && order == 5:
		return newCIC(factor, order, HALFBAND_LW9)
	default:
		return newCIC(factor, order, HALFBAND_NONE)
	}
}

// CICForRate picks the decimator configuration for a PCM output rate.
func CICForRate(rate uint32) (*CICDecimator, error) {
	switch {
	case rate >= 8000 && rate <= 24000:
		return newCIC(128, 4, HALFBAND_LW13)
	case rate > 24000 && rate <= 48000:
		return newCIC(64, 5, HALFBAND_LW9)
	case rate > 48000 && rate <= 96000:
		return newCIC(64, 5, HALFBAND_LW5)
	case rate > 96000 && rate <= 192000:
		return newCIC(32, 5, HALFBAND_NONE)
	default:
		return nil, fmt.Errorf("pdm rate %d: %w", rate, ErrUnsupportedRate)
	}
}

func newCIC(factor, order int, kind HalfbandKind) (*CICDecimator, error) {
	if factor != 32 && factor != 64 && factor != 128 {
		return nil, fmt.Errorf("decimation factor %d: %w", factor, ErrUnsupportedRate)
	}

	if order < 1 || order > 5 {
		return nil, fmt.Errorf("cic order %d out of range", order)
	}

	d := &CICDecimator{
		factor:   factor,
		order:    order,
		cicRatio: factor,
		halfband: newLatticeHalfband(kind),
	}

	if d.halfband != nil {
		d.cicRatio = factor / 2
	}

	// Gain of the cascade is cicRatio^order.
	gainBits := order * (bits.Len(uint(d.cicRatio)) - 1)
	d.shift = q28Shift - gainBits

	return d, nil
}

// Factor returns the decimation factor.
func (d *CICDecimator) Factor() int { return d.factor }

// Order returns the cascade order.
func (d *CICDecimator) Order() int { return d.order }

// Halfband returns the coefficient set of the final stage.
func (d *CICDecimator) Halfband() HalfbandKind {
	if d.halfband == nil {
		return HALFBAND_NONE
	}

	return d.halfband.kind
}

// WordsPerSample returns how many 32-bit PDM words one output sample consumes.
func (d *CICDecimator) WordsPerSample() int { return d.factor / 32 }

// Reset clears the filter state.
func (d *CICDecimator) Reset() {
	d.integ = [5]int64{}
	d.comb = [5]int64{}

	if d.halfband != nil {
		d.halfband.reset()
	}
}

// Process consumes exactly WordsPerSample words, MSB first, and returns one Q31 sample.
func (d *CICDecimator) Process(words []uint32) int32 {
	if d.halfband == nil {
		return DecimateAsQ31(d.cascade(words, d.factor))
	}

	half := d.cicRatio
	first := d.cascade(words, half)
	second := d.cascade(words[half/32:], half)

	return DecimateAsQ31(d.halfband.step(first, second))
}

// cascade runs n bits, n a multiple of 32, and returns the comb output in Q28.
func (d *CICDecimator) cascade(words []uint32, n int) int64 {
	for _, w := range words[:n/32] {
		for b := 31; b >= 0; b-- {
			d.integrate(w >> uint(b) & 1)
		}
	}

	return d.combOut()
}

func (d *CICDecimator) integrate(bit uint32) {
	x := int64(-1)
	if bit != 0 {
		x = 1
	}

	d.integ[0] += x
	for k := 1; k < d.order; k++ {
		d.integ[k] += d.integ[k-1]
	}
}

func (d *CICDecimator) combOut() int64 {
	v := d.integ[d.order-1]
	for k := 0; k < d.order; k++ {
		y := v - d.comb[k]
		d.comb[k] = v
		v = y
	}

	if d.shift >= 0 {
		return v << uint(d.shift)
	}

	return v >> uint(-d.shift)
}

// DecimateAsQ31 saturates a Q28 value and rescales it to Q31.
func DecimateAsQ31(v int64) int32 {
	if v > q28Max {
		v = q28Max
	} else if v < q28Min {
		v = q28Min
	}

	return int32(v << 3)
}
