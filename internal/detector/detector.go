// Package detector turns baseband channel samples into audio.
package detector

import (
	"fmt"
	"math"
	"strings"
)

// Detector demodulates one complex sample into one audio sample, nominal
// full scale ±1.
type Detector interface {
	Demod(c complex64) float32
	Reset()
}

// Mode names a modulation.
type Mode int

const (
	AM Mode = iota
	NFM
	WFM
)

// Default FM parameters.
const (
	NFMDeviation = 5000.0
	WFMDeviation = 75000.0

	// DefaultDeemphasis is the 50 µs time constant used outside the Americas.
	DefaultDeemphasis = 50e-6
)

func (m Mode) String() string {
	switch m {
	case AM:
		return "am"
	case NFM:
		return "nfm"
	case WFM:
		return "wfm"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "am", "nfm" or "wfm", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "am":
		return AM, nil
	case "nfm", "fm":
		return NFM, nil
	case "wfm", "bfm":
		return WFM, nil
	default:
		return 0, fmt.Errorf("unknown demodulation mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// DefaultDeviation returns the nominal peak deviation for FM modes, or 0.
func (m Mode) DefaultDeviation() float64 {
	switch m {
	case NFM:
		return NFMDeviation
	case WFM:
		return WFMDeviation
	default:
		return 0
	}
}

// onePole returns the coefficient of y += a·(x - y) for time constant tau
// seconds at rate Hz.
func onePole(tau, rate float64) float32 {
	if tau <= 0 || rate <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(tau*rate)))
}
