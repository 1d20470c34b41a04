package demod

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-sdr-demod/internal/detector"
	"github.com/tphakala/go-sdr-demod/internal/resampler"
)

// Common errors returned by the pipeline.
var (
	// ErrInvalidConfig indicates an unsatisfiable configuration.
	ErrInvalidConfig = errors.New("invalid demodulator configuration")

	// ErrStopped is returned by operations on a stopped pipeline.
	ErrStopped = errors.New("pipeline stopped")
)

// Mode aliases the detector modulation type.
type Mode = detector.Mode

// Supported modulations.
const (
	ModeAM  = detector.AM
	ModeNFM = detector.NFM
	ModeWFM = detector.WFM
)

// Config holds the complete pipeline configuration. Values are copied;
// the pipeline never shares a Config with its caller.
type Config struct {
	// InputRate is the wideband sample rate in Hz.
	InputRate float64 `yaml:"input_rate"`

	// CenterFrequency is the channel centre relative to the wideband DC,
	// in Hz.
	CenterFrequency float64 `yaml:"center_frequency"`

	// Bandwidth is the channel width in Hz. A bandwidth at or above
	// InputRate passes the input through unchannelized.
	Bandwidth float64 `yaml:"bandwidth"`

	// GuardBand widens the channel on each side while the channelizer
	// plans its cascade.
	GuardBand float64 `yaml:"guard_band"`

	// AudioRate is the PCM output rate in Hz.
	AudioRate float64 `yaml:"audio_rate"`

	Mode Mode `yaml:"mode"`

	Squelch   SquelchConfig   `yaml:"squelch"`
	Resampler ResamplerConfig `yaml:"resampler"`

	// Volume is a linear output gain.
	Volume float64 `yaml:"volume"`

	// AudioCutoffHz is the audio low-pass edge. Zero disables the filter.
	AudioCutoffHz float64 `yaml:"audio_cutoff"`

	// FMDeviation is the peak deviation mapped to full scale. Zero selects
	// the mode default.
	FMDeviation float64 `yaml:"fm_deviation"`

	// Deemphasis is the FM de-emphasis time constant in seconds. Zero
	// selects 50 µs for WFM and none otherwise; negative disables it.
	Deemphasis float64 `yaml:"deemphasis"`
}

// SquelchConfig configures the squelch gate.
type SquelchConfig struct {
	// ThresholdDB is the averaged channel power, relative to a full-scale
	// carrier, at which the gate opens.
	ThresholdDB float64 `yaml:"threshold_db"`

	// HangSamples counts demodulator-rate samples.
	HangSamples int `yaml:"hang_samples"`

	// Window is the moving-average length; zero means 16.
	Window int `yaml:"window"`
}

// ResamplerConfig configures the channel-to-demodulator resampler.
type ResamplerConfig struct {
	// CutoffHz of zero selects 90% of the lower Nyquist frequency. A
	// cutoff that does not fit the current channel rate falls back to
	// that default.
	CutoffHz float64 `yaml:"cutoff"`

	// TapCount is the per-phase filter length.
	TapCount int `yaml:"taps"`

	// Phases is the fractional-delay resolution; zero means 32.
	Phases int `yaml:"phases"`
}

// DefaultConfig returns an NFM configuration for an RTL-SDR capture with
// the channel at the centre of the band.
func DefaultConfig() Config {
	return Config{
		InputRate: RateRTLSDR,
		Bandwidth: BandwidthNFM,
		AudioRate: RateAudio,
		Mode:      ModeNFM,
		Squelch: SquelchConfig{
			ThresholdDB: DefaultThresholdDB,
			HangSamples: DefaultHangSamples,
		},
		Resampler: ResamplerConfig{
			TapCount: DefaultResampleTaps,
		},
		Volume:        DefaultVolume,
		AudioCutoffHz: DefaultAudioCutoff,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateChannel(c.InputRate, c.Bandwidth); err != nil {
		return err
	}
	if c.GuardBand < 0 {
		return fmt.Errorf("%w: guard band must not be negative", ErrInvalidConfig)
	}
	if c.AudioRate <= 0 {
		return fmt.Errorf("%w: audio rate must be positive", ErrInvalidConfig)
	}
	if err := validateMode(c.Mode, c.Volume); err != nil {
		return err
	}
	if err := validateSquelch(c.Squelch.HangSamples); err != nil {
		return err
	}
	if c.Squelch.Window < 0 {
		return fmt.Errorf("%w: squelch window must not be negative", ErrInvalidConfig)
	}
	if err := validateResampler(c.Resampler.CutoffHz, c.Resampler.TapCount); err != nil {
		return err
	}
	if c.Resampler.Phases < 0 {
		return fmt.Errorf("%w: resampler phases must not be negative", ErrInvalidConfig)
	}
	if c.AudioCutoffHz < 0 || c.AudioCutoffHz >= c.AudioRate/2 {
		return fmt.Errorf("%w: audio cutoff %v Hz out of range [0, %v)", ErrInvalidConfig, c.AudioCutoffHz, c.AudioRate/2)
	}
	if c.FMDeviation < 0 {
		return fmt.Errorf("%w: FM deviation must not be negative", ErrInvalidConfig)
	}
	return nil
}

func validateChannel(sampleRate, bandwidth float64) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidConfig, sampleRate)
	}
	if bandwidth <= 0 {
		return fmt.Errorf("%w: bandwidth must be positive, got %v", ErrInvalidConfig, bandwidth)
	}
	return nil
}

func validateSquelch(hangSamples int) error {
	if hangSamples < 0 {
		return fmt.Errorf("%w: squelch hang must not be negative, got %d", ErrInvalidConfig, hangSamples)
	}
	return nil
}

func validateResampler(cutoffHz float64, tapCount int) error {
	if tapCount <= 0 {
		return fmt.Errorf("%w: resampler tap count must be positive, got %d", ErrInvalidConfig, tapCount)
	}
	if cutoffHz < 0 {
		return fmt.Errorf("%w: resampler cutoff must not be negative, got %v", ErrInvalidConfig, cutoffHz)
	}
	return nil
}

func validateMode(mode Mode, volume float64) error {
	if mode < ModeAM || mode > ModeWFM {
		return fmt.Errorf("%w: unknown mode %v", ErrInvalidConfig, mode)
	}
	if volume < 0 {
		return fmt.Errorf("%w: volume must not be negative, got %v", ErrInvalidConfig, volume)
	}
	return nil
}

// demodRate is the rate the detector runs at.
func (c *Config) demodRate() float64 {
	if c.Mode == ModeWFM {
		return max(RateWFMDemod, c.AudioRate)
	}
	return c.AudioRate
}

func (c *Config) fmDeviation() float64 {
	if c.FMDeviation > 0 {
		return c.FMDeviation
	}
	return c.Mode.DefaultDeviation()
}

func (c *Config) deemphasis() float64 {
	switch {
	case c.Deemphasis < 0:
		return 0
	case c.Deemphasis > 0:
		return c.Deemphasis
	case c.Mode == ModeWFM:
		return detector.DefaultDeemphasis
	default:
		return 0
	}
}

// resamplerParams builds resampler parameters for a channel at inRate.
// A configured cutoff that no longer fits is replaced by the default; the
// second result reports that.
func (c *Config) resamplerParams(inRate, outRate float64) (resampler.Params, bool) {
	cutoff := c.Resampler.CutoffHz
	limit := min(inRate, outRate) / 2
	clamped := false
	if cutoff >= limit {
		cutoff = 0
		clamped = true
	}
	if cutoff == 0 {
		cutoff = autoCutoffFraction * limit
	}
	return resampler.Params{
		InputRate:  inRate,
		OutputRate: outRate,
		CutoffHz:   cutoff,
		TapCount:   c.Resampler.TapCount,
		Phases:     c.Resampler.Phases,
	}, clamped
}
