package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	demod "github.com/tphakala/go-sdr-demod"
	"github.com/tphakala/go-sdr-demod/internal/channelizer"
)

// progressInterval is how often, in recording time, progress is logged.
const progressInterval = 10 * time.Second

type demodOptions struct {
	format    string
	blockSize int
}

// demodResult summarises a demod run.
type demodResult struct {
	cfg     demod.Config
	stats   demod.Stats
	frames  int64
	elapsed time.Duration
}

func newDemodCmd(g *globalOptions) *cobra.Command {
	opts := demodOptions{}
	cmd := &cobra.Command{
		Use:   "demod [flags] input output.wav",
		Short: "Demodulate one channel of an IQ recording to a WAV file",
		Args:  cobra.ExactArgs(inOutArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), g.configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := runDemod(ctx, g.logger, cfg, cmd.Flags().Changed(flagRate), args[0], args[1], opts)
			if err != nil {
				return err
			}
			printDemodSummary(cmd.OutOrStdout(), args[0], args[1], res)
			return nil
		},
	}
	addChannelFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.format, "format", formatAuto, "Input format: auto, cu8, cs16, wav")
	cmd.Flags().IntVar(&opts.blockSize, "block", defaultBlockSize, "Wideband samples per processing block")
	return cmd
}

// runDemod streams inPath through a pipeline into a WAV file at outPath.
// A WAV input supplies its own sample rate unless rateSet is true.
func runDemod(
	ctx context.Context,
	logger *log.Logger,
	cfg demod.Config,
	rateSet bool,
	inPath, outPath string,
	opts demodOptions,
) (res demodResult, err error) {
	if opts.blockSize <= 0 {
		return res, fmt.Errorf("%w: block size must be positive", demod.ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := openIQSource(ctx, inPath, opts.format, opts.blockSize)
	if err != nil {
		return res, err
	}
	defer func() { _ = src.Close() }()

	if src.rate > 0 && !rateSet {
		cfg.InputRate = src.rate
		if err := cfg.Validate(); err != nil {
			return res, err
		}
	}

	plan, err := channelizer.Synthesize(cfg.InputRate, cfg.CenterFrequency, cfg.Bandwidth, cfg.GuardBand)
	if err != nil {
		return res, fmt.Errorf("%w: %w", demod.ErrInvalidConfig, err)
	}
	logger.Info("demodulating",
		"input", filepath.Base(inPath),
		"format", src.kind,
		"mode", cfg.Mode,
		"chain", plan.String())

	out, err := createWAVOutput(outPath, int(cfg.AudioRate))
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	// One block of audio at any ratio fits, so draining after every
	// block never drops frames.
	fifo := demod.NewFIFO(int(float64(opts.blockSize)*cfg.AudioRate/cfg.InputRate) + drainFrames)
	p, err := demod.New(cfg, fifo, demod.WithLogger(logger))
	if err != nil {
		return res, err
	}

	start := time.Now()
	buf := make([]demod.Frame, drainFrames)
	drain := func() error {
		for {
			n := fifo.Read(buf, 0)
			if n == 0 {
				return nil
			}
			if err := out.WriteFrames(buf[:n]); err != nil {
				return err
			}
		}
	}

	var (
		squelchOpen  bool
		lastProgress time.Duration
	)
	for block := range src.blocks {
		if err := p.Feed(demod.Block{Samples: block}); err != nil {
			p.Stop()
			return res, err
		}
		if err := drain(); err != nil {
			p.Stop()
			return res, err
		}

		st := p.Stats()
		at := time.Duration(float64(st.InputSamples) / cfg.InputRate * float64(time.Second))
		if st.SquelchOpen != squelchOpen {
			squelchOpen = st.SquelchOpen
			logger.Info("squelch", "open", squelchOpen, "at", at.Round(time.Millisecond), "power_db", fmt.Sprintf("%.1f", st.ChannelPowerDB))
		}
		if at-lastProgress >= progressInterval {
			lastProgress = at
			logger.Debug("progress", "recording", at.Round(time.Second), "frames", out.frames)
		}
	}
	srcErr := src.Err()

	p.Stop()
	if err := drain(); err != nil {
		return res, err
	}
	if srcErr != nil {
		return res, fmt.Errorf("failed to read input: %w", srcErr)
	}

	res = demodResult{
		cfg:     p.RunningConfig(),
		stats:   p.Stats(),
		frames:  out.frames,
		elapsed: time.Since(start),
	}
	return res, nil
}

func printDemodSummary(w io.Writer, inPath, outPath string, res demodResult) {
	st := res.stats
	fmt.Fprintf(w, "Demodulated %s -> %s\n", filepath.Base(inPath), filepath.Base(outPath))
	fmt.Fprintf(w, "  %s, %.0f Hz -> %.0f Hz (channel %.0f Hz, offset %+.1f Hz)\n",
		res.cfg.Mode, res.cfg.InputRate, res.cfg.AudioRate, st.ChannelRate, st.ChannelOffset)
	fmt.Fprintf(w, "  %d samples -> %d frames\n", st.InputSamples, res.frames)
	if st.Overflows > 0 || st.FIFODropped > 0 {
		fmt.Fprintf(w, "  Overflows: %d, dropped frames: %d\n", st.Overflows, st.FIFODropped)
	}
	if secs := res.elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "  Duration: %.2fs, Speed: %.1fx realtime\n",
			secs, float64(st.InputSamples)/res.cfg.InputRate/secs)
	}
}
