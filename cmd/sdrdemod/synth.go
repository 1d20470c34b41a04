package main

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	demod "github.com/tphakala/go-sdr-demod"
	"github.com/tphakala/go-sdr-demod/internal/detector"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/iq"
)

const (
	// Test signal defaults
	defaultToneHz    = 1000.0
	defaultAmplitude = 0.5 // carrier amplitude relative to full scale
	defaultAMDepth   = 0.5
	defaultDuration  = 2 * time.Second
	synthBlock       = 8192
	synthNoiseSeed   = 0x5eed
)

type synthOptions struct {
	rate      float64
	center    float64
	mode      string
	tone      float64
	deviation float64
	depth     float64
	amplitude float64
	noise     float64
	duration  time.Duration
	format    string
}

func newSynthCmd(g *globalOptions) *cobra.Command {
	opts := synthOptions{}
	cmd := &cobra.Command{
		Use:   "synth [flags] output",
		Short: "Write a modulated test carrier as an IQ recording",
		Args:  cobra.ExactArgs(inArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := writeSynth(args[0], opts)
			if err != nil {
				return err
			}
			g.logger.Info("wrote test signal", "file", args[0], "samples", n, "mode", opts.mode)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.Float64VarP(&opts.rate, flagRate, "r", demod.RateRTLSDR, "Sample rate in Hz")
	fs.Float64VarP(&opts.center, flagCenter, "f", 0, "Carrier offset from the capture centre in Hz")
	fs.StringVarP(&opts.mode, flagMode, "m", "nfm", "Modulation: cw, am, nfm, wfm")
	fs.Float64Var(&opts.tone, "tone", defaultToneHz, "Modulating tone in Hz")
	fs.Float64Var(&opts.deviation, flagDeviation, 0, "FM peak deviation in Hz (0 selects the mode default)")
	fs.Float64Var(&opts.depth, "depth", defaultAMDepth, "AM modulation depth")
	fs.Float64Var(&opts.amplitude, "amplitude", defaultAmplitude, "Carrier amplitude relative to full scale")
	fs.Float64Var(&opts.noise, "noise", 0, "Added complex noise RMS relative to full scale")
	fs.DurationVar(&opts.duration, "duration", defaultDuration, "Signal length")
	fs.StringVar(&opts.format, "format", formatAuto, "Output format: auto, cu8, cs16, wav")
	return cmd
}

// modulator returns the instantaneous amplitude and frequency offset for
// sample n.
type modulator func(n int) (amp, freq float64)

func newModulator(opts synthOptions) (modulator, error) {
	w := 2 * math.Pi * opts.tone / opts.rate
	if strings.EqualFold(opts.mode, "cw") {
		return func(int) (float64, float64) { return opts.amplitude, 0 }, nil
	}

	mode, err := detector.ParseMode(opts.mode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case detector.AM:
		if opts.depth < 0 || opts.depth > 1 {
			return nil, fmt.Errorf("AM depth %v out of range [0, 1]", opts.depth)
		}
		return func(n int) (float64, float64) {
			return opts.amplitude * (1 + opts.depth*math.Cos(w*float64(n))), 0
		}, nil
	default:
		dev := opts.deviation
		if dev == 0 {
			dev = mode.DefaultDeviation()
		}
		return func(n int) (float64, float64) {
			return opts.amplitude, dev * math.Cos(w*float64(n))
		}, nil
	}
}

// iqSink is where synthesised blocks go.
type iqSink interface {
	WriteIQ(block dsp.SampleBlock) error
}

type rawSink struct{ w *iq.Writer }

func (s rawSink) WriteIQ(block dsp.SampleBlock) error { return s.w.Write(block) }

// writeSynth writes the test signal to path and returns the sample count.
func writeSynth(path string, opts synthOptions) (n int, err error) {
	if opts.rate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %v", opts.rate)
	}
	if math.Abs(opts.center) >= opts.rate/2 {
		return 0, fmt.Errorf("carrier %v Hz outside ±%v Hz", opts.center, opts.rate/2)
	}
	mod, err := newModulator(opts)
	if err != nil {
		return 0, err
	}
	kind, err := detectFormat(path, opts.format)
	if err != nil {
		return 0, err
	}

	var (
		sink   iqSink
		closer io.Closer
	)
	if kind == "wav" {
		out, err := createWAVOutput(path, int(opts.rate))
		if err != nil {
			return 0, err
		}
		sink, closer = out, out
	} else {
		f, err := os.Create(path)
		if err != nil {
			return 0, fmt.Errorf("failed to create output file: %w", err)
		}
		ifmt, _ := iq.ParseFormat(kind)
		sink, closer = rawSink{iq.NewWriter(f, ifmt)}, f
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	total := int(opts.duration.Seconds() * opts.rate)
	rng := rand.New(rand.NewPCG(synthNoiseSeed, synthNoiseSeed))
	sigma := opts.noise / math.Sqrt2
	block := make(dsp.SampleBlock, synthBlock)

	var phase float64
	for n < total {
		m := min(synthBlock, total-n)
		for i := range m {
			amp, dev := mod(n + i)
			re := amp*math.Cos(phase) + rng.NormFloat64()*sigma
			im := amp*math.Sin(phase) + rng.NormFloat64()*sigma
			block[i] = dsp.FromComplex(complex(float32(re), float32(im)))
			phase = math.Mod(phase+2*math.Pi*(opts.center+dev)/opts.rate, 2*math.Pi)
		}
		if err := sink.WriteIQ(block[:m]); err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}
