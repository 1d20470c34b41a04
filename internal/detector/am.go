package detector

import "math/cmplx"

const (
	// amCarrierTau is the carrier tracking time constant in seconds.
	amCarrierTau = 0.1

	// amMinCarrier keeps the AGC gain finite on an empty channel.
	amMinCarrier = 1e-6
)

// AMDetector is an envelope detector. The carrier level, tracked with a
// slow one-pole average, is subtracted for DC removal and divided out for
// gain control, so the output is the modulation m(t) independent of the
// received level.
type AMDetector struct {
	alpha   float32
	carrier float32
}

// NewAM returns an envelope detector running at rate Hz.
func NewAM(rate float64) *AMDetector {
	return &AMDetector{alpha: onePole(amCarrierTau, rate)}
}

// Demod implements Detector.
func (d *AMDetector) Demod(c complex64) float32 {
	env := float32(cmplx.Abs(complex128(c)))
	if d.carrier == 0 {
		d.carrier = env
	} else {
		d.carrier += d.alpha * (env - d.carrier)
	}
	return (env - d.carrier) / max(d.carrier, amMinCarrier)
}

// Carrier returns the tracked carrier amplitude.
func (d *AMDetector) Carrier() float32 { return d.carrier }

// Reset implements Detector.
func (d *AMDetector) Reset() { d.carrier = 0 }
