// Package filter designs the FIR prototypes used by the channelizer,
// the rational resampler and the audio post-filter.
package filter

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/tphakala/go-sdr-demod/internal/mathutil"
	"github.com/tphakala/simd/f64"
)

const (
	minFilterTaps = 3
	maxFilterTaps = 8191

	// Normalised cutoff must lie strictly inside (0, Nyquist).
	nyquist = 0.5

	// Below this |x| the sinc takes its limit value.
	sincZeroThreshold = 1e-10
)

// KaiserWindow returns a Kaiser window of the given length:
//
//	w[n] = I₀(β·sqrt(1 - ((n - α)/α)²)) / I₀(β),  α = (N-1)/2
//
// The window is symmetric and peaks at 1.0 in the centre.
func KaiserWindow(length int, beta float64) []float64 {
	if length < 1 {
		return []float64{}
	}
	window := make([]float64, length)
	if length == 1 {
		window[0] = 1
		return window
	}

	alpha := float64(length-1) / 2
	norm := mathutil.BesselI0(beta)
	for n := range window {
		x := (float64(n) - alpha) / alpha
		window[n] = mathutil.BesselI0(beta*math.Sqrt(max(0, 1-x*x))) / norm
	}
	return window
}

// windowedSinc returns the Kaiser-windowed ideal low-pass impulse response
// 2fc·sinc(2fc·x) centred on (length-1)/2. It is not normalised.
func windowedSinc(length int, cutoff, attenuation float64) []float64 {
	h := KaiserWindow(length, mathutil.KaiserBeta(attenuation))
	center := float64(length-1) / 2
	for n := range h {
		x := float64(n) - center
		if math.Abs(x) < sincZeroThreshold {
			h[n] *= 2 * cutoff
			continue
		}
		h[n] *= math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
	}
	return h
}

// FilterParams holds parameters for low-pass design.
type FilterParams struct {
	// NumTaps is the filter length.
	NumTaps int

	// CutoffFreq is the -6 dB point as a fraction of the sample rate, in (0, 0.5).
	CutoffFreq float64

	// Attenuation is the stopband attenuation in dB; it selects the Kaiser β.
	Attenuation float64

	// Gain is the DC gain the taps are normalised to.
	Gain float64
}

// Validate checks if filter parameters are valid.
func (fp *FilterParams) Validate() error {
	if fp.NumTaps < minFilterTaps || fp.NumTaps > maxFilterTaps {
		return fmt.Errorf("filter length %d out of range [%d, %d]", fp.NumTaps, minFilterTaps, maxFilterTaps)
	}
	if fp.CutoffFreq <= 0 || fp.CutoffFreq >= nyquist {
		return fmt.Errorf("invalid cutoff frequency: %f (must be in (0, 0.5))", fp.CutoffFreq)
	}
	if fp.Attenuation < 0 {
		return fmt.Errorf("invalid attenuation: %f dB (must be positive)", fp.Attenuation)
	}
	if fp.Gain <= 0 {
		return fmt.Errorf("invalid gain: %f (must be positive)", fp.Gain)
	}
	return nil
}

// DesignLowPassFilter designs a linear-phase windowed-sinc low-pass filter
// whose taps sum to params.Gain.
func DesignLowPassFilter(params FilterParams) ([]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	h := windowedSinc(params.NumTaps, params.CutoffFreq, params.Attenuation)
	if sum := f64.Sum(h); math.Abs(sum) > sincZeroThreshold {
		f64.Scale(h, h, params.Gain/sum)
	}
	return h, nil
}

// DesignLowPassFilterAuto picks the length from the attenuation and the
// normalised transition bandwidth, then designs as DesignLowPassFilter.
func DesignLowPassFilterAuto(cutoffFreq, transitionBW, attenuation, gain float64) ([]float64, error) {
	return DesignLowPassFilter(FilterParams{
		NumTaps:     mathutil.EstimateFilterLength(attenuation, transitionBW),
		CutoffFreq:  cutoffFreq,
		Attenuation: attenuation,
		Gain:        gain,
	})
}

// Response evaluates H(e^jω) of coeffs at the normalised frequency f
// (cycles per sample).
func Response(coeffs []float64, f float64) complex128 {
	var h complex128
	w := -2 * math.Pi * f
	for n, c := range coeffs {
		h += complex(c, 0) * cmplx.Rect(1, w*float64(n))
	}
	return h
}

// MagnitudeDB converts linear magnitude to decibels.
func MagnitudeDB(magnitude float64) float64 {
	const (
		minMagnitude = 1e-10
		dbMultiplier = 20.0
	)
	return dbMultiplier * math.Log10(max(magnitude, minMagnitude))
}
