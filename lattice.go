package aio

// Reflector-pair coefficient sets of the polyphase allpass halfband stage.
// Each branch is a cascade of first-order allpass sections in z^-2, the classic lattice-wave
// halfband. Coefficients are stored as float64 and converted to Q28 when a stage is built.
var (
	lw5TapsA = []float64{0.5393079}
	lw5TapsB = []float64{0.1175503}

	lw9TapsA = []float64{0.167135116548925, 0.742130012538075}
	lw9TapsB = []float64{0.0413554705262319, 0.3878932830211427}

	lw13TapsA = []float64{0.1393016, 0.5017273, 0.9074125}
	lw13TapsB = []float64{0.0364121, 0.3010233, 0.7130402}
)

// HalfbandKind selects one of the lattice coefficient sets.
type HalfbandKind int

const (
	HALFBAND_NONE HalfbandKind = iota
	HALFBAND_LW5
	HALFBAND_LW9
	HALFBAND_LW13
)

var halfbandNames = map[HalfbandKind]string{
	HALFBAND_NONE: "none",
	HALFBAND_LW5:  "lw5",
	HALFBAND_LW9:  "lw9",
	HALFBAND_LW13: "lw13",
}

// String returns the name of the coefficient set.
func (k HalfbandKind) String() string {
	if name, ok := halfbandNames[k]; ok {
		return name
	}

	return "unknown"
}

func (k HalfbandKind) taps() (a, b []float64) {
	switch k {
	case HALFBAND_LW5:
		return lw5TapsA, lw5TapsB
	case HALFBAND_LW9:
		return lw9TapsA, lw9TapsB
	case HALFBAND_LW13:
		return lw13TapsA, lw13TapsB
	default:
		return nil, nil
	}
}

// allpassSection is y[n] = c*(x[n] - y[n-1]) + x[n-1] in Q28.
type allpassSection struct {
	c     int64
	xPrev int64
	yPrev int64
}

func (s *allpassSection) step(x int64) int64 {
	y := (s.c*(x-s.yPrev))>>q28Shift + s.xPrev
	s.xPrev = x
	s.yPrev = y

	return y
}

// latticeHalfband decimates by two. Branch A runs on the even input and branch B on the
// odd input of the previous pair, the two outputs are averaged.
type latticeHalfband struct {
	kind    HalfbandKind
	a, b    []allpassSection
	oddPrev int64
}

func newLatticeHalfband(kind HalfbandKind) *latticeHalfband {
	ta, tb := kind.taps()
	if ta == nil {
		return nil
	}

	h := &latticeHalfband{
		kind: kind,
		a:    make([]allpassSection, len(ta)),
		b:    make([]allpassSection, len(tb)),
	}

	for i, c := range ta {
		h.a[i].c = toQ28(c)
	}

	for i, c := range tb {
		h.b[i].c = toQ28(c)
	}

	return h
}

func toQ28(c float64) int64 {
	return int64(c * float64(int64(1)<<q28Shift))
}

func (h *latticeHalfband) reset() {
	for i := range h.a {
		h.a[i].xPrev, h.a[i].yPrev = 0, 0
	}

	for i := range h.b {
		h.b[i].xPrev, h.b[i].yPrev = 0, 0
	}

	h.oddPrev = 0
}

// step consumes two consecutive Q28 samples and returns one.
func (h *latticeHalfband) step(even, odd int64) int64 {
	ra := even
	for i := range h.a {
		ra = h.a[i].step(ra)
	}

	rb := h.oddPrev
	for i := range h.b {
		rb = h.b[i].step(rb)
	}

	h.oddPrev = odd

	return (ra + rb) >> 1
}
