package filter

import (
	"fmt"
	"math"
)

const (
	// halfbandCutoff is Fs/4, the symmetry point of every halfband filter.
	halfbandCutoff = 0.25

	// Q15 coefficient scale used by the fixed-point stages.
	CoeffBits  = 15
	CoeffScale = 1 << CoeffBits

	minHalfbandOrder = 1
	maxHalfbandOrder = 64
)

// DesignHalfband returns a halfband low-pass of 4·order-1 taps. Every tap at
// an even distance from the centre, other than the centre itself, is exactly
// zero; the centre tap is 0.5 and the DC gain is 1.
func DesignHalfband(order int, attenuation float64) ([]float64, error) {
	if order < minHalfbandOrder || order > maxHalfbandOrder {
		return nil, fmt.Errorf("halfband order %d out of range [%d, %d]", order, minHalfbandOrder, maxHalfbandOrder)
	}

	n := 4*order - 1
	center := n / 2
	h := windowedSinc(n, halfbandCutoff, attenuation)

	// The odd-offset taps sum to 0.5 in an exact halfband; rescale them so
	// they do, then pin the centre and the structural zeros.
	var side float64
	for i := range h {
		d := i - center
		if d%2 == 0 {
			h[i] = 0
			continue
		}
		side += h[i]
	}
	for i := range h {
		h[i] *= 0.5 / side
	}
	h[center] = 0.5
	return h, nil
}

// QuantizeQ15 converts taps to Q15 integers. The centre tap absorbs the
// rounding error so the integer taps sum to exactly CoeffScale whenever the
// float taps sum to 1.
func QuantizeQ15(h []float64) []int32 {
	q := make([]int32, len(h))
	var sum, target int64
	var fsum float64
	for i, v := range h {
		q[i] = int32(math.Round(v * CoeffScale))
		sum += int64(q[i])
		fsum += v
	}
	target = int64(math.Round(fsum * CoeffScale))
	if len(q) > 0 {
		q[len(q)/2] += int32(target - sum)
	}
	return q
}
