package filter

import (
	"fmt"
)

const (
	minNumPhases = 2
	maxNumPhases = 1024

	minTapsPerPhase = 4
	maxTapsPerPhase = 256
)

// PolyphaseBank is a low-pass prototype split into Phases sub-filters of
// TapsPerPhase taps each.
//
// Rows[p] is laid out oldest-to-newest: Rows[p][j] weights the history
// sample that is TapsPerPhase-1-j samples older than the newest one. The
// sub-filter for fractional position μ ∈ [0,1) is Rows[floor(μ·Phases)].
type PolyphaseBank struct {
	Rows         [][]float64
	Phases       int
	TapsPerPhase int
}

// PolyphaseParams holds parameters for polyphase bank design.
type PolyphaseParams struct {
	// Phases is the number of sub-filters (fractional-delay resolution).
	Phases int

	// TapsPerPhase is the length of each sub-filter and of the history.
	TapsPerPhase int

	// SampleRate is the input rate the sub-filters run at, in Hz.
	SampleRate float64

	// Cutoff is the pass-band edge in Hz.
	Cutoff float64

	// Attenuation is the stopband attenuation in dB.
	Attenuation float64
}

// Validate checks if polyphase parameters are valid.
func (pp *PolyphaseParams) Validate() error {
	if pp.Phases < minNumPhases || pp.Phases > maxNumPhases {
		return fmt.Errorf("number of phases %d out of range [%d, %d]", pp.Phases, minNumPhases, maxNumPhases)
	}
	if pp.TapsPerPhase < minTapsPerPhase || pp.TapsPerPhase > maxTapsPerPhase {
		return fmt.Errorf("taps per phase %d out of range [%d, %d]", pp.TapsPerPhase, minTapsPerPhase, maxTapsPerPhase)
	}
	if pp.SampleRate <= 0 {
		return fmt.Errorf("sample rate %f must be positive", pp.SampleRate)
	}
	if pp.Cutoff <= 0 || pp.Cutoff >= pp.SampleRate/2 {
		return fmt.Errorf("cutoff %f Hz out of range (0, %f)", pp.Cutoff, pp.SampleRate/2)
	}
	return nil
}

// DesignPolyphaseBank designs a prototype of Phases·TapsPerPhase taps at
// Phases·SampleRate and decomposes it. The prototype is scaled so that every
// phase has unit DC gain on average.
func DesignPolyphaseBank(params PolyphaseParams) (*PolyphaseBank, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid polyphase parameters: %w", err)
	}

	p, t := params.Phases, params.TapsPerPhase
	proto, err := DesignLowPassFilter(FilterParams{
		NumTaps:     p * t,
		CutoffFreq:  params.Cutoff / (params.SampleRate * float64(p)),
		Attenuation: params.Attenuation,
		Gain:        float64(p),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to design prototype filter: %w", err)
	}

	bank := &PolyphaseBank{
		Rows:         make([][]float64, p),
		Phases:       p,
		TapsPerPhase: t,
	}
	// Phase ph, tap i of the newest-first sub-filter is proto[i·P + ph];
	// store it reversed so rows line up with an oldest-first history.
	for ph := range p {
		row := make([]float64, t)
		for i := range t {
			row[t-1-i] = proto[i*p+ph]
		}
		bank.Rows[ph] = row
	}
	return bank, nil
}

// Latency is the prototype's group delay expressed in input samples.
func (b *PolyphaseBank) Latency() float64 {
	return float64(b.Phases*b.TapsPerPhase-1) / 2 / float64(b.Phases)
}
