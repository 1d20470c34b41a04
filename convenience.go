package demod

import (
	"fmt"
)

// drainChunk is the read size used when collecting FIFO output.
const drainChunk = 4096

// AMConfig returns a broadcast AM configuration for a channel at
// centerFrequency within a capture at inputRate.
func AMConfig(inputRate, centerFrequency float64) Config {
	cfg := DefaultConfig()
	cfg.InputRate = inputRate
	cfg.CenterFrequency = centerFrequency
	cfg.Bandwidth = BandwidthAM
	cfg.Mode = ModeAM
	cfg.AudioCutoffHz = BandwidthAM / 2
	return cfg
}

// NFMConfig returns a narrowband FM voice configuration.
func NFMConfig(inputRate, centerFrequency float64) Config {
	cfg := DefaultConfig()
	cfg.InputRate = inputRate
	cfg.CenterFrequency = centerFrequency
	return cfg
}

// WFMConfig returns a broadcast FM configuration (mono, 50 µs
// de-emphasis).
func WFMConfig(inputRate, centerFrequency float64) Config {
	cfg := DefaultConfig()
	cfg.InputRate = inputRate
	cfg.CenterFrequency = centerFrequency
	cfg.Bandwidth = BandwidthWFM
	cfg.Mode = ModeWFM
	cfg.AudioCutoffHz = DefaultWFMAudioCut
	cfg.Squelch.HangSamples = RateWFMDemod / 10
	return cfg
}

// Demodulate runs samples through a new pipeline in blocks of blockSize
// and returns all audio produced. It is meant for recordings and tests;
// live sources should drive a Pipeline directly.
func Demodulate(cfg Config, samples SampleBlock, blockSize int, opts ...Option) ([]Frame, Stats, error) {
	if blockSize <= 0 {
		return nil, Stats{}, fmt.Errorf("%w: block size must be positive", ErrInvalidConfig)
	}
	if cfg.InputRate <= 0 {
		return nil, Stats{}, fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfig)
	}

	// Room for one block of audio at any ratio, so nothing is dropped
	// while draining between blocks.
	perBlock := int(float64(blockSize)*cfg.AudioRate/cfg.InputRate) + drainChunk
	fifo := NewFIFO(perBlock)

	p, err := New(cfg, fifo, opts...)
	if err != nil {
		return nil, Stats{}, err
	}

	out := make([]Frame, 0, int(float64(len(samples))*cfg.AudioRate/cfg.InputRate))
	buf := make([]Frame, drainChunk)
	drain := func() {
		for {
			n := fifo.Read(buf, 0)
			if n == 0 {
				return
			}
			out = append(out, buf[:n]...)
		}
	}

	for start := 0; start < len(samples); start += blockSize {
		end := min(start+blockSize, len(samples))
		if err := p.Feed(Block{Samples: samples[start:end]}); err != nil {
			return out, p.Stats(), err
		}
		drain()
	}
	p.Stop()
	drain()
	return out, p.Stats(), nil
}
