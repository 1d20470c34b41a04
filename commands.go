package demod

import (
	"context"
	"errors"

	"github.com/tphakala/go-sdr-demod/internal/control"
)

// command is an immutable configuration change applied by the worker.
type command interface {
	apply(p *Pipeline)
}

type channelCommand struct {
	sampleRate      float64
	centerFrequency float64
	bandwidth       float64
}

type squelchCommand struct {
	thresholdDB float64
	hangSamples int
}

type resamplerCommand struct {
	cutoffHz float64
	tapCount int
}

type demodCommand struct {
	mode   Mode
	volume float64
}

func (c channelCommand) apply(p *Pipeline) {
	p.applyChannel(c.sampleRate, c.centerFrequency, c.bandwidth)
}

func (c squelchCommand) apply(p *Pipeline) {
	p.cfg.Squelch.ThresholdDB = c.thresholdDB
	p.cfg.Squelch.HangSamples = c.hangSamples
	p.gate.SetThreshold(c.thresholdDB, c.hangSamples)
	p.log.Debug("squelch updated", "threshold_db", c.thresholdDB, "hang", c.hangSamples)
}

func (c resamplerCommand) apply(p *Pipeline) {
	p.cfg.Resampler.CutoffHz = c.cutoffHz
	p.cfg.Resampler.TapCount = c.tapCount
	p.rebuildResampler()
}

func (c demodCommand) apply(p *Pipeline) {
	p.cfg.Volume = c.volume
	if p.cfg.Mode != c.mode {
		p.cfg.Mode = c.mode
		p.buildAudio()
		p.rebuildResampler()
	}
	p.log.Debug("demodulator updated", "mode", c.mode, "volume", c.volume)
}

// Configure retunes the channel. It may be called from any goroutine and
// blocks only while the command queue is full.
func (p *Pipeline) Configure(ctx context.Context, sampleRate, centerFrequency, bandwidth float64) error {
	if err := validateChannel(sampleRate, bandwidth); err != nil {
		return err
	}
	return p.push(ctx, channelCommand{sampleRate, centerFrequency, bandwidth})
}

// ConfigureSquelch changes the squelch threshold and hang length.
func (p *Pipeline) ConfigureSquelch(ctx context.Context, thresholdDB float64, hangSamples int) error {
	if err := validateSquelch(hangSamples); err != nil {
		return err
	}
	return p.push(ctx, squelchCommand{thresholdDB, hangSamples})
}

// ConfigureResampler changes the resampler cutoff and per-phase tap count.
func (p *Pipeline) ConfigureResampler(ctx context.Context, cutoffHz float64, tapCount int) error {
	if err := validateResampler(cutoffHz, tapCount); err != nil {
		return err
	}
	return p.push(ctx, resamplerCommand{cutoffHz, tapCount})
}

// ConfigureDemod changes the modulation and output volume.
func (p *Pipeline) ConfigureDemod(ctx context.Context, mode Mode, volume float64) error {
	if err := validateMode(mode, volume); err != nil {
		return err
	}
	return p.push(ctx, demodCommand{mode, volume})
}

func (p *Pipeline) push(ctx context.Context, cmd command) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	err := p.cmds.Push(ctx, cmd)
	if errors.Is(err, control.ErrClosed) {
		return ErrStopped
	}
	return err
}
