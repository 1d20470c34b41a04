package detector

import (
	"math"
	"math/cmplx"
)

// FMDetector is a quadrature discriminator with optional de-emphasis.
type FMDetector struct {
	scale float32 // radians per sample to full scale
	prev  complex64

	deemph bool
	alpha  float32
	y      float32
}

// NewFM returns a discriminator for samples at rate Hz. A frequency
// deviation of deviation Hz maps to ±1. tau is the de-emphasis time
// constant in seconds; zero disables it.
func NewFM(rate, deviation, tau float64) *FMDetector {
	return &FMDetector{
		scale:  float32(rate / (2 * math.Pi * deviation)),
		deemph: tau > 0,
		alpha:  onePole(tau, rate),
	}
}

// Demod implements Detector.
func (d *FMDetector) Demod(c complex64) float32 {
	v := complex128(c) * cmplx.Conj(complex128(d.prev))
	d.prev = c
	x := float32(cmplx.Phase(v)) * d.scale
	if !d.deemph {
		return x
	}
	d.y += d.alpha * (x - d.y)
	return d.y
}

// Reset implements Detector.
func (d *FMDetector) Reset() {
	d.prev = 0
	d.y = 0
}
