// Package dsp defines the sample formats shared by every stage of the
// demodulation chain.
//
// Wideband samples are fixed-point I/Q pairs. All fixed-point arithmetic in
// this module saturates at the format limits; it never wraps.
package dsp

import "math"

// Fixed-point format constants.
const (
	// SampleBits is the number of significant bits per component.
	SampleBits = 16

	// SampleMax and SampleMin are the representable component limits.
	SampleMax = math.MaxInt16
	SampleMin = math.MinInt16

	// FullScale maps fixed-point components to the float range [-1, 1).
	FullScale = 1 << (SampleBits - 1)
)

// Sample is one complex fixed-point sample.
type Sample struct {
	Re int16
	Im int16
}

// SampleBlock is an ordered run of samples delivered in one scheduling tick.
type SampleBlock []Sample

// Complex converts the sample to a float complex number, full scale ±1.0.
func (s Sample) Complex() complex64 {
	return complex(float32(s.Re)/FullScale, float32(s.Im)/FullScale)
}

// FromComplex converts a float sample (full scale ±1.0) to fixed point,
// rounding to nearest and saturating out-of-range components.
func FromComplex(c complex64) Sample {
	re, _ := Saturate(int64(math.Round(float64(real(c)) * FullScale)))
	im, _ := Saturate(int64(math.Round(float64(imag(c)) * FullScale)))
	return Sample{Re: re, Im: im}
}

// MagSq returns |s|² normalised to full scale.
func (s Sample) MagSq() float64 {
	re := float64(s.Re) / FullScale
	im := float64(s.Im) / FullScale
	return re*re + im*im
}

// Saturate clamps v into the sample range. The second result reports
// whether clamping happened.
func Saturate(v int64) (int16, bool) {
	switch {
	case v > SampleMax:
		return SampleMax, true
	case v < SampleMin:
		return SampleMin, true
	default:
		return int16(v), false
	}
}

// SaturateFloat clamps a full-scale float value into the sample range.
func SaturateFloat(v float32) int16 {
	s, _ := Saturate(int64(math.Round(float64(v) * FullScale)))
	return s
}

// Rotate multiplies s by c + j·sn where c and sn are each -1, 0 or 1,
// i.e. one of the four quarter-turn rotations. The result saturates, so
// negating SampleMin yields SampleMax. The second result reports saturation.
func Rotate(s Sample, c, sn int64) (Sample, bool) {
	re, o1 := Saturate(c*int64(s.Re) - sn*int64(s.Im))
	im, o2 := Saturate(sn*int64(s.Re) + c*int64(s.Im))
	return Sample{Re: re, Im: im}, o1 || o2
}

// ToComplex converts a block into dst, growing it as needed, and returns
// the filled slice.
func (b SampleBlock) ToComplex(dst []complex64) []complex64 {
	dst = dst[:0]
	for _, s := range b {
		dst = append(dst, s.Complex())
	}
	return dst
}
