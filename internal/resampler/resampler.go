// Package resampler converts complex streams between arbitrary sample
// rates with a polyphase FIR bank.
//
// Inputs are pushed one at a time and the outputs they make ready are
// drained with Next:
//
//	r.Push(re, im)
//	for {
//		yr, yi, ok := r.Next()
//		if !ok {
//			break
//		}
//		...
//	}
package resampler

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-sdr-demod/internal/filter"
	"github.com/tphakala/go-sdr-demod/internal/simdops"
)

// Defaults used when a Params field is zero.
const (
	DefaultPhases      = 32
	DefaultTapCount    = 32
	DefaultAttenuation = 80.0

	// defaultCutoffFraction of the lower of the two Nyquist rates.
	defaultCutoffFraction = 0.9
)

// ErrInvalidRate is returned when either rate is not positive.
var ErrInvalidRate = errors.New("resampler: sample rates must be positive")

// Params configures a Resampler.
type Params struct {
	InputRate  float64
	OutputRate float64

	// CutoffHz is the anti-alias pass-band edge. Zero selects 90% of the
	// lower Nyquist frequency.
	CutoffHz float64

	// TapCount is the length of each polyphase sub-filter and of the
	// history.
	TapCount int

	// Phases is the fractional-delay resolution.
	Phases int

	// Attenuation is the stopband target in dB.
	Attenuation float64
}

func (p Params) withDefaults() Params {
	if p.Phases == 0 {
		p.Phases = DefaultPhases
	}
	if p.TapCount == 0 {
		p.TapCount = DefaultTapCount
	}
	if p.Attenuation == 0 {
		p.Attenuation = DefaultAttenuation
	}
	if p.CutoffHz == 0 {
		p.CutoffHz = defaultCutoffFraction * min(p.InputRate, p.OutputRate) / 2
	}
	return p
}

// Resampler is a streaming complex resampler. The zero value is not
// usable. It is owned by one goroutine.
type Resampler[F simdops.Float] struct {
	params Params
	ops    *simdops.Ops[F]

	rows   [][]F // oldest-to-newest, see filter.PolyphaseBank
	phases int
	taps   int

	// I and Q history rings; ptr is the oldest sample and the next write.
	histRe []F
	histIm []F
	ptr    int

	// distance is the position of the next output relative to the newest
	// input, in input samples. Outputs are due while it is below 1.
	distance float64
	step     float64

	latency float64
}

// New designs the polyphase bank for p and returns a resampler with a
// zero-filled history.
func New[F simdops.Float](p Params) (*Resampler[F], error) {
	if p.InputRate <= 0 || p.OutputRate <= 0 {
		return nil, fmt.Errorf("%w: %v -> %v", ErrInvalidRate, p.InputRate, p.OutputRate)
	}
	p = p.withDefaults()

	bank, err := filter.DesignPolyphaseBank(filter.PolyphaseParams{
		Phases:       p.Phases,
		TapsPerPhase: p.TapCount,
		SampleRate:   p.InputRate,
		Cutoff:       p.CutoffHz,
		Attenuation:  p.Attenuation,
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}

	rows := make([][]F, bank.Phases)
	for i, row := range bank.Rows {
		rows[i] = make([]F, len(row))
		for j, c := range row {
			rows[i][j] = F(c)
		}
	}

	r := &Resampler[F]{
		params:  p,
		ops:     simdops.For[F](),
		rows:    rows,
		phases:  bank.Phases,
		taps:    bank.TapsPerPhase,
		histRe:  make([]F, bank.TapsPerPhase),
		histIm:  make([]F, bank.TapsPerPhase),
		step:    p.InputRate / p.OutputRate,
		latency: bank.Latency(),
	}
	r.Reset()
	return r, nil
}

// Params returns the effective parameters, defaults filled in.
func (r *Resampler[F]) Params() Params { return r.params }

// Latency is the group delay in input samples.
func (r *Resampler[F]) Latency() float64 { return r.latency }

// Reset zero-fills the history and rewinds the output clock.
func (r *Resampler[F]) Reset() {
	clear(r.histRe)
	clear(r.histIm)
	r.ptr = 0
	r.distance = 1
}

// Push appends one input sample. Drain Next before the following Push.
func (r *Resampler[F]) Push(re, im F) {
	r.histRe[r.ptr] = re
	r.histIm[r.ptr] = im
	r.ptr++
	if r.ptr == r.taps {
		r.ptr = 0
	}
	r.distance--
}

// Next returns the next ready output, or ok == false when another input
// is needed.
func (r *Resampler[F]) Next() (re, im F, ok bool) {
	if r.distance >= 1 {
		return 0, 0, false
	}

	phase := int(r.distance * float64(r.phases))
	phase = min(max(phase, 0), r.phases-1)
	row := r.rows[phase]

	// The ring holds oldest..newest as hist[ptr:] followed by hist[:ptr].
	split := r.taps - r.ptr
	re = r.ops.Dot(row[:split], r.histRe[r.ptr:]) + r.ops.Dot(row[split:], r.histRe[:r.ptr])
	im = r.ops.Dot(row[:split], r.histIm[r.ptr:]) + r.ops.Dot(row[split:], r.histIm[:r.ptr])

	r.distance += r.step
	return re, im, true
}

// Process resamples a block of I/Q pairs and appends the outputs to dstRe
// and dstIm.
func (r *Resampler[F]) Process(dstRe, dstIm, re, im []F) ([]F, []F) {
	for i := range re {
		r.Push(re[i], im[i])
		for {
			yr, yi, ok := r.Next()
			if !ok {
				break
			}
			dstRe = append(dstRe, yr)
			dstIm = append(dstIm, yi)
		}
	}
	return dstRe, dstIm
}
