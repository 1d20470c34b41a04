// Package nco implements a table-driven numerically controlled oscillator.
//
// The phase is an integer index into a shared sine table, so long runs do
// not drift and changing frequency never moves the phase.
package nco

import (
	"math"
	"sync"
)

// TableSize is the number of entries in one sine period. It must be a
// power of two so the phase can wrap with a mask.
const TableSize = 4096

const (
	tableMask     = TableSize - 1
	quarterPeriod = TableSize / 4
)

var sineTable = sync.OnceValue(func() []float32 {
	t := make([]float32, TableSize)
	for i := range t {
		t[i] = float32(math.Sin(2 * math.Pi * float64(i) / TableSize))
	}
	return t
})

// NCO is a phase-continuous complex oscillator. It is not safe for
// concurrent use.
type NCO struct {
	table []float32
	phase int
	inc   int
}

// New returns an oscillator at 0 Hz with phase 0.
func New() *NCO {
	return &NCO{table: sineTable()}
}

// SetFreq sets the frequency to the nearest table step. Negative
// frequencies wrap. The phase index is left untouched.
func (n *NCO) SetFreq(freq, sampleRate float64) {
	if sampleRate <= 0 {
		n.inc = 0
		return
	}
	inc := int(math.Round(freq / sampleRate * TableSize))
	n.inc = inc & tableMask
}

// Increment returns the per-sample phase step in table entries, in
// [0, TableSize).
func (n *NCO) Increment() int { return n.inc }

// Phase returns the current table index.
func (n *NCO) Phase() int { return n.phase }

// Freq reports the frequency actually synthesised at sampleRate, in
// (-sampleRate/2, sampleRate/2].
func (n *NCO) Freq(sampleRate float64) float64 {
	inc := n.inc
	if inc > TableSize/2 {
		inc -= TableSize
	}
	return float64(inc) * sampleRate / TableSize
}

func (n *NCO) advance() {
	n.phase = (n.phase + n.inc) & tableMask
}

// Next returns the in-phase (cosine) component and advances.
func (n *NCO) Next() float32 {
	v := n.table[(n.phase+quarterPeriod)&tableMask]
	n.advance()
	return v
}

// NextIQ returns cos + j·sin of the current phase and advances.
func (n *NCO) NextIQ() complex64 {
	v := complex(n.table[(n.phase+quarterPeriod)&tableMask], n.table[n.phase])
	n.advance()
	return v
}

// Mix multiplies block in place by the oscillator output.
func (n *NCO) Mix(block []complex64) {
	for i, s := range block {
		block[i] = s * n.NextIQ()
	}
}

// Reset returns the phase to zero. Frequency changes never call it.
func (n *NCO) Reset() {
	n.phase = 0
}
