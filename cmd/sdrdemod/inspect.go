package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	demod "github.com/tphakala/go-sdr-demod"
	"github.com/tphakala/go-sdr-demod/internal/channelizer"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/filter"
	"github.com/tphakala/go-sdr-demod/internal/halfband"
	"github.com/tphakala/go-sdr-demod/internal/mathutil"
	"github.com/tphakala/go-sdr-demod/internal/resampler"
	"github.com/tphakala/go-sdr-demod/internal/simdops"
	"github.com/tphakala/go-sdr-demod/internal/spectrum"
)

const (
	// Resampler analysis
	phaseSimIterations = 1000 // outputs simulated to find the phases a ratio uses
	maxPhasesToShow    = 8    // phases printed in detail

	// Spectrum probe
	defaultProbeFFT = 65536
	minProbeFFT     = 16
)

func newChainCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain [flags]",
		Short: "Print the halfband cascade planned for a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Flags(), g.configPath)
			if err != nil {
				return err
			}
			plan, err := channelizer.Synthesize(cfg.InputRate, cfg.CenterFrequency, cfg.Bandwidth, cfg.GuardBand)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), cfg.CenterFrequency, cfg.Bandwidth, cfg.GuardBand, plan)
			return nil
		},
	}
	addPlanFlags(cmd.Flags())
	return cmd
}

func printPlan(w io.Writer, center, bandwidth, guard float64, plan channelizer.Plan) {
	fmt.Fprintf(w, "Channel: %.1f Hz, %.1f Hz wide (guard %.1f Hz)\n", center, bandwidth, guard)
	fmt.Fprintf(w, "Input rate: %.0f Hz\n", plan.InputRate)
	fmt.Fprintf(w, "Halfband stages (order %d, %d taps, %.0f dB):\n",
		halfband.Order, len(halfband.Taps()), halfband.Attenuation)

	rate := plan.InputRate
	for i, m := range plan.Stages {
		fmt.Fprintf(w, "  %2d: %-6s %10.0f Hz -> %.0f Hz\n", i+1, m, rate, rate/2)
		rate /= 2
	}
	if len(plan.Stages) == 0 {
		fmt.Fprintln(w, "  none (passthrough)")
	}
	fmt.Fprintf(w, "Output rate: %.0f Hz (÷%d)\n", plan.OutputRate, plan.Decimation())
	fmt.Fprintf(w, "Residual offset: %+.1f Hz\n", plan.Offset)
}

type filterOptions struct {
	inRate  float64
	outRate float64
	cutoff  float64
	taps    int
	phases  int
}

func newFilterCmd(_ *globalOptions) *cobra.Command {
	opts := filterOptions{}
	cmd := &cobra.Command{
		Use:   "filter [flags]",
		Short: "Analyse the resampler filter bank for a rate pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return analyzeFilter(cmd.OutOrStdout(), opts)
		},
	}
	fs := cmd.Flags()
	fs.Float64VarP(&opts.inRate, flagRate, "r", 32000, "Input (channel) rate in Hz")
	fs.Float64VarP(&opts.outRate, "out", "o", 48000, "Output rate in Hz")
	fs.Float64Var(&opts.cutoff, "cutoff", 0, "Pass-band edge in Hz (0 selects the default)")
	fs.IntVar(&opts.taps, flagTaps, resampler.DefaultTapCount, "Taps per phase")
	fs.IntVar(&opts.phases, "phases", resampler.DefaultPhases, "Number of phases")
	return cmd
}

// phaseUsage simulates the fractional positions a resampler visits for
// step input samples per output and returns the distinct phases in first
// use order.
func phaseUsage(step float64, phases, iterations int) []int {
	seen := make(map[int]bool)
	var used []int
	var pos float64
	for range iterations {
		_, frac := math.Modf(pos)
		ph := min(int(frac*float64(phases)), phases-1)
		if !seen[ph] {
			seen[ph] = true
			used = append(used, ph)
		}
		pos += step
	}
	return used
}

func analyzeFilter(w io.Writer, opts filterOptions) error {
	r, err := resampler.New[float64](resampler.Params{
		InputRate:  opts.inRate,
		OutputRate: opts.outRate,
		CutoffHz:   opts.cutoff,
		TapCount:   opts.taps,
		Phases:     opts.phases,
	})
	if err != nil {
		return err
	}
	p := r.Params()

	bank, err := filter.DesignPolyphaseBank(filter.PolyphaseParams{
		Phases:       p.Phases,
		TapsPerPhase: p.TapCount,
		SampleRate:   p.InputRate,
		Cutoff:       p.CutoffHz,
		Attenuation:  p.Attenuation,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "=== Resampler Filter Bank ===")
	fmt.Fprintf(w, "  %.0f Hz -> %.0f Hz (step %.6f)\n", p.InputRate, p.OutputRate, p.InputRate/p.OutputRate)
	fmt.Fprintf(w, "  Cutoff: %.1f Hz, Attenuation: %.0f dB\n", p.CutoffHz, p.Attenuation)
	fmt.Fprintf(w, "  Phases: %d, TapsPerPhase: %d\n", bank.Phases, bank.TapsPerPhase)
	fmt.Fprintf(w, "  Latency: %.3f input samples\n", r.Latency())
	fmt.Fprintf(w, "  Kernels: %s\n\n", simdops.Info())

	gains := make([]float64, bank.Phases)
	var total float64
	minGain, maxGain := math.Inf(1), math.Inf(-1)
	for ph, row := range bank.Rows {
		var dc float64
		for _, c := range row {
			dc += c
		}
		gains[ph] = dc
		total += dc
		minGain = min(minGain, dc)
		maxGain = max(maxGain, dc)
	}

	fmt.Fprintln(w, "DC gain per phase:")
	for ph := range min(maxPhasesToShow, bank.Phases) {
		fmt.Fprintf(w, "  Phase %2d: %.10f\n", ph, gains[ph])
	}
	if bank.Phases > maxPhasesToShow {
		fmt.Fprintf(w, "  ... (%d more phases)\n", bank.Phases-maxPhasesToShow)
	}
	fmt.Fprintf(w, "Average DC gain: %.10f\n", total/float64(bank.Phases))
	fmt.Fprintf(w, "DC gain ripple: %.3f dB\n", mathutil.PowerToDB(maxGain*maxGain/(minGain*minGain)))

	used := phaseUsage(p.InputRate/p.OutputRate, bank.Phases, phaseSimIterations)
	var usedSum float64
	for _, ph := range used {
		usedSum += gains[ph]
	}
	fmt.Fprintf(w, "\nRatio uses %d of %d phases, average DC gain %.10f\n",
		len(used), bank.Phases, usedSum/float64(len(used)))
	return nil
}

type probeOptions struct {
	format string
	fftLen int
	skip   int
}

func newProbeCmd(g *globalOptions) *cobra.Command {
	opts := probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe [flags] input",
		Short: "Report the strongest carrier in an IQ recording",
		Args:  cobra.ExactArgs(inArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), g.configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			peak, rate, err := probeFile(ctx, args[0], opts, cfg.InputRate, cmd.Flags().Changed(flagRate))
			if err != nil {
				return err
			}
			g.logger.Debug("probe", "bin", peak.Bin, "bin_hz", peak.BinHz)
			fmt.Fprintf(cmd.OutOrStdout(), "Peak: %+.1f Hz (±%.1f Hz) at %.1f dBFS, sample rate %.0f Hz\n",
				peak.Freq, peak.BinHz/2, peak.PowerDB, rate)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.Float64P(flagRate, "r", demod.RateRTLSDR, "Sample rate in Hz (WAV inputs supply their own)")
	fs.StringVar(&opts.format, "format", formatAuto, "Input format: auto, cu8, cs16, wav")
	fs.IntVar(&opts.fftLen, "fft", defaultProbeFFT, "Transform length in samples")
	fs.IntVar(&opts.skip, "skip", 0, "Samples to skip before the transform")
	return cmd
}

// probeFile reads opts.fftLen samples after opts.skip and locates the
// strongest bin. The rate actually used is returned.
func probeFile(ctx context.Context, path string, opts probeOptions, rate float64, rateSet bool) (spectrum.Peak, float64, error) {
	if opts.fftLen < minProbeFFT {
		return spectrum.Peak{}, rate, fmt.Errorf("transform length %d below %d", opts.fftLen, minProbeFFT)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := openIQSource(ctx, path, opts.format, opts.fftLen)
	if err != nil {
		return spectrum.Peak{}, rate, err
	}
	defer func() { _ = src.Close() }()
	if src.rate > 0 && !rateSet {
		rate = src.rate
	}

	samples := make(dsp.SampleBlock, 0, opts.fftLen)
	skip := opts.skip
	for block := range src.blocks {
		if skip >= len(block) {
			skip -= len(block)
			continue
		}
		block = block[skip:]
		skip = 0
		need := opts.fftLen - len(samples)
		samples = append(samples, block[:min(need, len(block))]...)
		if len(samples) == opts.fftLen {
			break
		}
	}
	if len(samples) < opts.fftLen {
		// The stream ended on its own, so its error is final.
		if err := src.Err(); err != nil {
			return spectrum.Peak{}, rate, err
		}
		return spectrum.Peak{}, rate, fmt.Errorf("recording holds %d samples after skip, need %d", len(samples), opts.fftLen)
	}

	buf := make([]complex128, len(samples))
	for i, c := range samples.ToComplex(nil) {
		buf[i] = complex128(c)
	}
	peak, err := spectrum.FindPeak(buf, rate)
	return peak, rate, err
}
