// Package halfband implements the fixed-point decimate-by-two stage the
// channelizer cascades. A stage optionally shifts the spectrum by ±Fs/4
// before filtering so either half of the band can be folded to baseband.
package halfband

import (
	"fmt"
	"sync"

	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/filter"
)

// Mode selects which part of the input band a stage keeps.
type Mode int

const (
	// Center keeps [-Fs/4, Fs/4) and only decimates.
	Center Mode = iota
	// LowerHalf shifts [-Fs/2, 0) up to baseband.
	LowerHalf
	// UpperHalf shifts [0, Fs/2) down to baseband.
	UpperHalf
)

func (m Mode) String() string {
	switch m {
	case Center:
		return "center"
	case LowerHalf:
		return "lower"
	case UpperHalf:
		return "upper"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const (
	// Order is the number of non-zero side taps per side; the filter has
	// 4·Order-1 taps.
	Order = 12

	// Attenuation is the stopband target in dB.
	Attenuation = 80.0

	roundingBias = 1 << (filter.CoeffBits - 1)
)

var sharedTaps = sync.OnceValue(func() []int32 {
	h, err := filter.DesignHalfband(Order, Attenuation)
	if err != nil {
		panic(fmt.Sprintf("halfband: prototype design failed: %v", err))
	}
	return filter.QuantizeQ15(h)
})

// Taps returns a copy of the Q15 coefficients every stage shares.
func Taps() []int32 {
	return append([]int32(nil), sharedTaps()...)
}

// rotation is one quarter-turn factor c + j·s.
type rotation struct{ c, s int64 }

// Per-mode rotation sequences, indexed by input sample number mod 4.
var rotations = [...][4]rotation{
	Center:    {{1, 0}, {1, 0}, {1, 0}, {1, 0}},
	LowerHalf: {{1, 0}, {0, 1}, {-1, 0}, {0, -1}}, // ×e^{+jπn/2}
	UpperHalf: {{1, 0}, {0, -1}, {-1, 0}, {0, 1}}, // ×e^{-jπn/2}
}

// Stage is one decimate-by-two halfband filter. The zero value is not
// usable; construct with NewStage.
type Stage struct {
	mode    Mode
	taps    []int32
	nonZero []int // indices of taps that are not structural zeros
	rot     [4]rotation
	rotIdx  int

	hist  []dsp.Sample // doubled ring, window is hist[pos:pos+len(taps)]
	pos   int
	phase bool

	overflows uint64
}

// NewStage returns a stage for mode with cleared history.
func NewStage(mode Mode) *Stage {
	if mode < Center || mode > UpperHalf {
		panic(fmt.Sprintf("halfband: invalid mode %d", int(mode)))
	}
	taps := sharedTaps()
	s := &Stage{
		mode: mode,
		taps: taps,
		rot:  rotations[mode],
		hist: make([]dsp.Sample, 2*len(taps)),
	}
	for i, c := range taps {
		if c != 0 {
			s.nonZero = append(s.nonZero, i)
		}
	}
	return s
}

// Mode returns the stage's mode.
func (s *Stage) Mode() Mode { return s.mode }

// Work consumes *x. On every second call it overwrites *x with one
// decimated output and returns true; otherwise *x is left as is and the
// result is false.
func (s *Stage) Work(x *dsp.Sample) bool {
	r := s.rot[s.rotIdx]
	s.rotIdx = (s.rotIdx + 1) & 3

	in, sat := dsp.Rotate(*x, r.c, r.s)
	if sat {
		s.overflows++
	}

	n := len(s.taps)
	s.hist[s.pos] = in
	s.hist[s.pos+n] = in
	s.pos++
	if s.pos == n {
		s.pos = 0
	}

	s.phase = !s.phase
	if s.phase {
		return false
	}

	w := s.hist[s.pos : s.pos+n]
	var accRe, accIm int64
	for _, k := range s.nonZero {
		c := int64(s.taps[k])
		accRe += c * int64(w[k].Re)
		accIm += c * int64(w[k].Im)
	}

	re, o1 := dsp.Saturate((accRe + roundingBias) >> filter.CoeffBits)
	im, o2 := dsp.Saturate((accIm + roundingBias) >> filter.CoeffBits)
	if o1 || o2 {
		s.overflows++
	}
	*x = dsp.Sample{Re: re, Im: im}
	return true
}

// Reset clears the history and restarts the rotation and output cadence.
// The overflow count is kept.
func (s *Stage) Reset() {
	clear(s.hist)
	s.pos = 0
	s.rotIdx = 0
	s.phase = false
}

// Overflows returns how many samples saturated since construction.
func (s *Stage) Overflows() uint64 { return s.overflows }
