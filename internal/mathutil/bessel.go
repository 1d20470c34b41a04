// Package mathutil provides the numeric helpers shared by filter design and
// level estimation.
package mathutil

import (
	"math"
)

// BesselI0 computes the modified Bessel function of the first kind, order zero.
//
// It sums the power series
//
//	I₀(x) = Σ ((x/2)^k / k!)²
//
// which converges quickly for the arguments Kaiser windows use.
func BesselI0(x float64) float64 {
	half := x / 2
	sum := 1.0
	term := 1.0

	for k := 1; k < besselMaxTerms; k++ {
		f := half / float64(k)
		term *= f * f
		sum += term
		if term < besselEpsilon*sum {
			break
		}
	}

	return sum
}

// KaiserBeta computes the Kaiser window β parameter from the desired
// stopband attenuation in decibels.
//
//   - att > 50 dB:        β = 0.1102 * (att - 8.7)
//   - 21 dB ≤ att ≤ 50 dB: β = 0.5842 * (att - 21)^0.4 + 0.07886 * (att - 21)
//   - att < 21 dB:        β = 0
func KaiserBeta(attenuation float64) float64 {
	if attenuation > kaiserAttHigh {
		return kaiserBetaHighCoeff1 * (attenuation - kaiserBetaHighOffset)
	} else if attenuation >= kaiserAttMedium {
		delta := attenuation - kaiserAttMedium
		return kaiserBetaMediumCoeff1*math.Pow(delta, kaiserBetaMediumPower) + kaiserBetaMediumCoeff2*delta
	}
	return 0.0
}

// EstimateFilterLength estimates the FIR length needed for the given
// attenuation (dB) and normalised transition bandwidth (fraction of the
// sample rate). The result is odd and clamped to a sane range.
func EstimateFilterLength(attenuation, transitionBW float64) int {
	if transitionBW <= 0 {
		transitionBW = defaultTransitionBW
	}

	numTaps := (attenuation - kaiserFilterLengthOffset) /
		(kaiserFilterLengthMultiplier * kaiserFilterLengthPiFactor * math.Pi * transitionBW)

	taps := int(math.Ceil(numTaps))
	if taps%2 == 0 {
		taps++
	}

	return min(max(taps, minFilterLength), maxFilterLength)
}

// PowerToDB converts a linear power ratio to decibels. Zero and negative
// inputs map to the floor instead of -Inf.
func PowerToDB(power float64) float64 {
	return powerDBFactor * math.Log10(max(power, minPower))
}

// DBToPower converts decibels to a linear power ratio.
func DBToPower(db float64) float64 {
	return math.Pow(10, db/powerDBFactor)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
