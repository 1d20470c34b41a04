package mathutil

// Bessel series constants
const (
	// besselMaxTerms bounds the power series for I₀; convergence is reached
	// long before this for the β range used by window design (β < 40).
	besselMaxTerms = 64

	// besselEpsilon stops the series once a term no longer changes the sum.
	besselEpsilon = 1e-17
)

// Kaiser window formula constants
// From Kaiser & Schafer's empirical formulas
const (
	kaiserAttHigh   = 50.0 // High attenuation threshold (dB)
	kaiserAttMedium = 21.0 // Medium attenuation threshold (dB)

	kaiserBetaHighCoeff1 = 0.1102 // Coefficient for high attenuation
	kaiserBetaHighOffset = 8.7    // Offset for high attenuation

	kaiserBetaMediumCoeff1 = 0.5842  // Primary coefficient for medium attenuation
	kaiserBetaMediumPower  = 0.4     // Power for medium attenuation formula
	kaiserBetaMediumCoeff2 = 0.07886 // Secondary coefficient for medium attenuation
)

// Filter length estimation constants
const (
	// Kaiser's filter length formula: N ≈ (att - 8) / (2.285 * 2π * Δf)
	kaiserFilterLengthOffset     = 8.0
	kaiserFilterLengthMultiplier = 2.285
	kaiserFilterLengthPiFactor   = 2.0

	minFilterLength = 3
	maxFilterLength = 8191

	defaultTransitionBW = 0.01
)

// Level conversion constants
const (
	powerDBFactor = 10.0  // 10*log10 for power ratios
	minPower      = 1e-20 // Floor for log of zero power (-200 dB)
)
