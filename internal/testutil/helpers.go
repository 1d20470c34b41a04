// Package testutil provides reusable test helpers for the demodulation core.
package testutil

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance   = 1e-10
	MagnitudeTolerance = 1e-2
	DBTolerance        = 0.01
)

// halfDivisor is used for finding center indices in symmetric arrays.
const halfDivisor = 2

// noiseSeed keeps generated noise reproducible across runs.
const noiseSeed = 0x5eed

// AssertSymmetric verifies that a slice is symmetric (s[i] == s[n-1-i]).
func AssertSymmetric(t *testing.T, s []float64, tolerance float64) bool {
	t.Helper()
	n := len(s)
	for i := 0; i < n/halfDivisor; i++ {
		j := n - 1 - i
		if !assert.InDelta(t, s[i], s[j], tolerance,
			"slice not symmetric at i=%d: s[%d]=%f != s[%d]=%f", i, i, s[i], j, s[j]) {
			return false
		}
	}
	return true
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertDCGain verifies that the sum of coefficients equals the expected DC gain.
func AssertDCGain(t *testing.T, coeffs []float64, expectedGain, tolerance float64) bool {
	t.Helper()
	var sum float64
	for _, c := range coeffs {
		sum += c
	}
	return assert.InDelta(t, expectedGain, sum, tolerance,
		"DC gain = %f, want %f", sum, expectedGain)
}

// AssertRelativeError verifies that the relative error between actual and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}

// ComplexTone returns n samples of amplitude·e^(j2πfn/rate).
func ComplexTone(n int, freq, rate, amplitude float64) []complex128 {
	out := make([]complex128, n)
	w := 2 * math.Pi * freq / rate
	for i := range out {
		out[i] = cmplx.Rect(amplitude, w*float64(i))
	}
	return out
}

// ToneBlock returns a fixed-point complex tone. amplitude is relative to
// full scale (1.0).
func ToneBlock(n int, freq, rate, amplitude float64) dsp.SampleBlock {
	tone := ComplexTone(n, freq, rate, amplitude)
	block := make(dsp.SampleBlock, n)
	for i, c := range tone {
		block[i] = dsp.FromComplex(complex64(c))
	}
	return block
}

// NoiseBlock returns complex Gaussian noise with the given RMS amplitude
// relative to full scale. The generator is seeded, so runs are repeatable.
func NoiseBlock(n int, rms float64) dsp.SampleBlock {
	rng := rand.New(rand.NewPCG(noiseSeed, noiseSeed))
	sigma := rms / math.Sqrt2
	block := make(dsp.SampleBlock, n)
	for i := range block {
		block[i] = dsp.FromComplex(complex(
			float32(rng.NormFloat64()*sigma),
			float32(rng.NormFloat64()*sigma)))
	}
	return block
}

// BlockToComplex converts a fixed-point block to float samples.
func BlockToComplex(block dsp.SampleBlock) []complex128 {
	out := make([]complex128, len(block))
	for i, s := range block {
		out[i] = complex128(s.Complex())
	}
	return out
}
