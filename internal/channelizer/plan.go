// Package channelizer extracts a sub-band from a wideband stream with a
// cascade of halfband stages. The cascade is planned by bisecting the
// input spectrum until the channel no longer fits in a half.
package channelizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tphakala/go-sdr-demod/internal/halfband"
)

// MaxStages bounds the cascade depth for very narrow channels.
const MaxStages = 16

// ErrInvalidRate is returned for non-positive sample rates.
var ErrInvalidRate = errors.New("channelizer: sample rate must be positive")

// ErrInvalidBandwidth is returned for non-positive channel bandwidths.
var ErrInvalidBandwidth = errors.New("channelizer: bandwidth must be positive")

// Plan is the outcome of chain synthesis.
type Plan struct {
	Stages     []halfband.Mode
	InputRate  float64
	OutputRate float64

	// Offset is the channel centre relative to the output band's DC.
	Offset float64
}

// Decimation returns the overall rate reduction factor.
func (p Plan) Decimation() int { return 1 << len(p.Stages) }

func (p Plan) String() string {
	if len(p.Stages) == 0 {
		return fmt.Sprintf("passthrough @ %.0f Hz, offset %+.1f Hz", p.OutputRate, p.Offset)
	}
	names := make([]string, len(p.Stages))
	for i, m := range p.Stages {
		names[i] = m.String()
	}
	return fmt.Sprintf("%s @ %.0f Hz (÷%d), offset %+.1f Hz",
		strings.Join(names, " > "), p.OutputRate, p.Decimation(), p.Offset)
}

// Synthesize plans the cascade for a channel of bandwidth centred on
// centerFrequency (both Hz, relative to the input DC). guard widens the
// channel by that many Hz on each side during the search.
//
// At each level the channel is tested against the lower half of the
// current interval, then the upper half, then the centre half; the first
// match wins. A channel as wide as the input yields an empty cascade.
func Synthesize(sampleRate, centerFrequency, bandwidth, guard float64) (Plan, error) {
	if sampleRate <= 0 {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidRate, sampleRate)
	}
	if bandwidth <= 0 {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidBandwidth, bandwidth)
	}
	guard = max(guard, 0)

	sigStart, sigEnd := -sampleRate/2, sampleRate/2
	chanStart := centerFrequency - bandwidth/2 - guard
	chanEnd := centerFrequency + bandwidth/2 + guard

	plan := Plan{InputRate: sampleRate}
	for len(plan.Stages) < MaxStages {
		width := sigEnd - sigStart
		mid := sigStart + width/2
		quarter := width / 4

		switch {
		case chanStart >= sigStart && chanEnd <= mid:
			plan.Stages = append(plan.Stages, halfband.LowerHalf)
			sigEnd = mid
		case chanStart >= mid && chanEnd <= sigEnd:
			plan.Stages = append(plan.Stages, halfband.UpperHalf)
			sigStart = mid
		case chanStart >= sigStart+quarter && chanEnd <= sigEnd-quarter:
			plan.Stages = append(plan.Stages, halfband.Center)
			sigStart += quarter
			sigEnd -= quarter
		default:
			return plan.finish(sigStart, sigEnd, centerFrequency), nil
		}
	}
	return plan.finish(sigStart, sigEnd, centerFrequency), nil
}

func (p Plan) finish(sigStart, sigEnd, centerFrequency float64) Plan {
	p.OutputRate = p.InputRate / float64(p.Decimation())
	p.Offset = centerFrequency - (sigStart+sigEnd)/2
	return p
}
