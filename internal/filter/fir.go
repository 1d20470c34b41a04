package filter

import (
	"github.com/tphakala/go-sdr-demod/internal/simdops"
)

// FIR is a streaming real FIR filter. The history is stored twice so the
// newest len(taps) samples are always one contiguous slice.
type FIR[F simdops.Float] struct {
	taps []F // oldest-to-newest order
	hist []F
	pos  int
	ops  *simdops.Ops[F]
}

// NewFIR creates a filter from taps given in impulse-response order.
func NewFIR[F simdops.Float](h []float64) *FIR[F] {
	n := len(h)
	taps := make([]F, n)
	for i, v := range h {
		taps[n-1-i] = F(v)
	}
	return &FIR[F]{
		taps: taps,
		hist: make([]F, 2*n),
		ops:  simdops.For[F](),
	}
}

// Filter pushes x and returns the next output sample.
func (f *FIR[F]) Filter(x F) F {
	n := len(f.taps)
	if n == 0 {
		return x
	}
	f.hist[f.pos] = x
	f.hist[f.pos+n] = x
	f.pos++
	if f.pos == n {
		f.pos = 0
	}
	return f.ops.DotProductUnsafe(f.taps, f.hist[f.pos:f.pos+n])
}

// Reset clears the history.
func (f *FIR[F]) Reset() {
	clear(f.hist)
	f.pos = 0
}
