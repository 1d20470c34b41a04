// Package squelch gates demodulated audio on a moving-average power
// estimate with a hang timer for hysteresis.
package squelch

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-sdr-demod/internal/mathutil"
)

// DefaultWindow is the moving-average length used when Config.Window is 0.
const DefaultWindow = 16

// ErrInvalidConfig is returned for negative hang or window lengths.
var ErrInvalidConfig = errors.New("squelch: invalid configuration")

// State is the gate state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Config configures a Gate.
type Config struct {
	// ThresholdDB is compared against the averaged power, 0 dB being a
	// full-scale tone.
	ThresholdDB float64

	// HangSamples is how many non-qualifying samples an open gate
	// tolerates before closing.
	HangSamples int

	// Window is the moving-average length in samples.
	Window int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.HangSamples < 0 {
		return fmt.Errorf("%w: hang samples %d is negative", ErrInvalidConfig, c.HangSamples)
	}
	if c.Window < 0 {
		return fmt.Errorf("%w: window %d is negative", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Gate is a power squelch. It starts Closed and is owned by one goroutine.
type Gate struct {
	threshold float64 // linear power
	hangMax   int

	window []float64
	idx    int
	sum    float64

	state State
	hang  int
}

// New returns a closed gate with an empty (all-zero) average.
func New(cfg Config) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Window
	if n == 0 {
		n = DefaultWindow
	}
	g := &Gate{window: make([]float64, n)}
	g.SetThreshold(cfg.ThresholdDB, cfg.HangSamples)
	return g, nil
}

// SetThreshold changes the threshold and hang length. The running average
// and state are kept; a shorter hang takes effect on the next re-trigger.
func (g *Gate) SetThreshold(thresholdDB float64, hangSamples int) {
	g.threshold = mathutil.DBToPower(thresholdDB)
	g.hangMax = max(hangSamples, 0)
}

// Feed adds one power sample and reports whether the gate is open.
func (g *Gate) Feed(power float64) bool {
	g.sum += power - g.window[g.idx]
	g.window[g.idx] = power
	g.idx++
	if g.idx == len(g.window) {
		g.idx = 0
		// Resum once per lap so subtraction error cannot accumulate.
		g.sum = 0
		for _, p := range g.window {
			g.sum += p
		}
	}

	qualifies := g.Average() >= g.threshold
	switch g.state {
	case Closed:
		if qualifies {
			g.state = Open
			g.hang = g.hangMax
		}
	case Open:
		switch {
		case qualifies:
			g.hang = g.hangMax
		case g.hang > 0:
			g.hang--
		default:
			g.state = Closed
		}
	}
	return g.state == Open
}

// IsOpen reports whether audio should pass.
func (g *Gate) IsOpen() bool { return g.state == Open }

// State returns the current state.
func (g *Gate) State() State { return g.state }

// Average returns the moving-average power (linear).
func (g *Gate) Average() float64 {
	return g.sum / float64(len(g.window))
}

// AverageDB returns the moving-average power in dB.
func (g *Gate) AverageDB() float64 {
	return mathutil.PowerToDB(g.Average())
}

// Reset closes the gate and clears the average.
func (g *Gate) Reset() {
	clear(g.window)
	g.idx = 0
	g.sum = 0
	g.state = Closed
	g.hang = 0
}
