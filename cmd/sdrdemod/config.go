package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	demod "github.com/tphakala/go-sdr-demod"
	"github.com/tphakala/go-sdr-demod/internal/detector"
	"gopkg.in/yaml.v3"
)

// Flag names shared by the subcommands that describe a channel.
const (
	flagRate       = "rate"
	flagCenter     = "center"
	flagBandwidth  = "bandwidth"
	flagGuard      = "guard"
	flagMode       = "mode"
	flagAudioRate  = "audio-rate"
	flagSquelch    = "squelch"
	flagHang       = "hang"
	flagVolume     = "volume"
	flagAudioCut   = "audio-cutoff"
	flagDeviation  = "deviation"
	flagDeemphasis = "deemphasis"
	flagTaps       = "taps"
)

// addPlanFlags registers the flags that place a channel in the capture.
func addPlanFlags(fs *pflag.FlagSet) {
	def := demod.DefaultConfig()
	fs.Float64P(flagRate, "r", def.InputRate, "Wideband sample rate in Hz")
	fs.Float64P(flagCenter, "f", def.CenterFrequency, "Channel centre relative to the capture centre in Hz")
	fs.Float64P(flagBandwidth, "b", def.Bandwidth, "Channel bandwidth in Hz")
	fs.Float64(flagGuard, def.GuardBand, "Guard band added to each side of the channel in Hz")
}

// addChannelFlags registers every configuration flag on fs. Defaults
// mirror demod.DefaultConfig; only flags the user sets override the
// config file.
func addChannelFlags(fs *pflag.FlagSet) {
	def := demod.DefaultConfig()
	addPlanFlags(fs)
	fs.StringP(flagMode, "m", def.Mode.String(), "Demodulation mode: am, nfm, wfm")
	fs.Float64(flagAudioRate, def.AudioRate, "Audio output rate in Hz")
	fs.Float64(flagSquelch, def.Squelch.ThresholdDB, "Squelch threshold in dBFS")
	fs.Int(flagHang, def.Squelch.HangSamples, "Squelch hang time in audio-rate samples")
	fs.Float64(flagVolume, def.Volume, "Linear output gain")
	fs.Float64(flagAudioCut, def.AudioCutoffHz, "Audio low-pass cutoff in Hz (0 disables)")
	fs.Float64(flagDeviation, 0, "FM peak deviation in Hz (0 selects the mode default)")
	fs.Float64(flagDeemphasis, 0, "FM de-emphasis time constant in seconds (negative disables)")
	fs.Int(flagTaps, def.Resampler.TapCount, "Resampler taps per phase")
}

// loadConfig reads a YAML configuration. Fields missing from the file keep
// their DefaultConfig values.
func loadConfig(path string) (demod.Config, error) {
	cfg := demod.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// presetFor returns the preset for mode, keeping the rate and centre of
// base.
func presetFor(mode demod.Mode, base demod.Config) demod.Config {
	switch mode {
	case demod.ModeAM:
		return demod.AMConfig(base.InputRate, base.CenterFrequency)
	case demod.ModeWFM:
		return demod.WFMConfig(base.InputRate, base.CenterFrequency)
	default:
		return demod.NFMConfig(base.InputRate, base.CenterFrequency)
	}
}

// resolveConfig builds the effective configuration: the file (or the
// defaults), then the mode preset when --mode is given without a file,
// then every flag the user set explicitly. Flags not registered on fs are
// never considered set.
func resolveConfig(fs *pflag.FlagSet, path string) (demod.Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return cfg, err
	}

	if fs.Changed(flagMode) {
		name, _ := fs.GetString(flagMode)
		mode, err := detector.ParseMode(name)
		if err != nil {
			return cfg, err
		}
		if path == "" {
			cfg = presetFor(mode, cfg)
		}
		cfg.Mode = mode
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{flagRate, &cfg.InputRate},
		{flagCenter, &cfg.CenterFrequency},
		{flagBandwidth, &cfg.Bandwidth},
		{flagGuard, &cfg.GuardBand},
		{flagAudioRate, &cfg.AudioRate},
		{flagSquelch, &cfg.Squelch.ThresholdDB},
		{flagVolume, &cfg.Volume},
		{flagAudioCut, &cfg.AudioCutoffHz},
		{flagDeviation, &cfg.FMDeviation},
		{flagDeemphasis, &cfg.Deemphasis},
	}
	for _, f := range floats {
		if !fs.Changed(f.name) {
			continue
		}
		v, err := fs.GetFloat64(f.name)
		if err != nil {
			return cfg, err
		}
		*f.dst = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{flagHang, &cfg.Squelch.HangSamples},
		{flagTaps, &cfg.Resampler.TapCount},
	}
	for _, f := range ints {
		if !fs.Changed(f.name) {
			continue
		}
		v, err := fs.GetInt(f.name)
		if err != nil {
			return cfg, err
		}
		*f.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
