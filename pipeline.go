package demod

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/tphakala/go-sdr-demod/internal/audio"
	"github.com/tphakala/go-sdr-demod/internal/channelizer"
	"github.com/tphakala/go-sdr-demod/internal/control"
	"github.com/tphakala/go-sdr-demod/internal/detector"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/filter"
	"github.com/tphakala/go-sdr-demod/internal/nco"
	"github.com/tphakala/go-sdr-demod/internal/resampler"
	"github.com/tphakala/go-sdr-demod/internal/squelch"
)

// Block is one scheduling tick of wideband input.
type Block struct {
	Samples dsp.SampleBlock

	// FirstOfBurst marks a discontinuity before Samples. Filter, squelch
	// and detector state is cleared; oscillator phase is kept.
	FirstOfBurst bool
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger    *log.Logger
	tap       channelizer.Sink
	queueSize int
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChannelSink receives a copy of the channelizer output and its
// format events, before fine tuning. The sink runs on the worker
// goroutine and must not retain the blocks it is given.
func WithChannelSink(s channelizer.Sink) Option {
	return func(o *options) { o.tap = s }
}

// WithQueueSize sets how many control commands may be pending.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// Pipeline is one demodulator instance.
type Pipeline struct {
	log  *log.Logger
	fifo *audio.FIFO
	cmds *control.Queue[command]
	tap  channelizer.Sink

	// mu is held by the worker for each block and by Stop, so Stop never
	// clears state under a running block.
	mu       sync.Mutex
	stopped  atomic.Bool
	stopOnce sync.Once

	cfg      Config // running configuration, worker-owned
	snapshot atomic.Pointer[Config]

	chz        *channelizer.Channelizer
	fine       *nco.NCO
	format     channelizer.Format
	haveFormat bool
	res        *resampler.Resampler[float32]
	post       *resampler.Resampler[float32] // demod rate to audio rate, nil if equal
	gate       *squelch.Gate
	det        detector.Detector
	lpf        *filter.FIR[float32]

	// Per-block scratch.
	baseband []complex64
	demodOut []float32
	zeros    []float32
	postRe   []float32
	postIm   []float32
	frames   []audio.Frame

	stats counters
}

// New creates a pipeline that writes PCM into fifo. The channel described
// by cfg is planned immediately; its format is announced with the first
// block.
func New(cfg Config, fifo *audio.FIFO, opts ...Option) (*Pipeline, error) {
	if fifo == nil {
		return nil, fmt.Errorf("%w: nil audio FIFO", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: log.Default(), queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&o)
	}

	gate, err := squelch.New(squelch.Config{
		ThresholdDB: cfg.Squelch.ThresholdDB,
		HangSamples: cfg.Squelch.HangSamples,
		Window:      cfg.Squelch.Window,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	p := &Pipeline{
		log:  o.logger,
		fifo: fifo,
		cmds: control.New[command](o.queueSize),
		tap:  o.tap,
		cfg:  cfg,
		chz:  channelizer.New(cfg.GuardBand),
		fine: nco.New(),
		gate: gate,
	}
	p.buildAudio()
	p.applyChannel(cfg.InputRate, cfg.CenterFrequency, cfg.Bandwidth)
	if !p.chz.Configured() {
		return nil, fmt.Errorf("%w: channel could not be planned", ErrInvalidConfig)
	}
	p.publishConfig()

	p.log.Info("pipeline created",
		"mode", cfg.Mode,
		"input_rate", cfg.InputRate,
		"center", cfg.CenterFrequency,
		"bandwidth", cfg.Bandwidth,
		"audio_rate", cfg.AudioRate)
	return p, nil
}

// Feed applies pending control commands and then processes one block. It
// does not block on the audio FIFO; frames that do not fit are dropped
// and counted. After Stop it returns ErrStopped.
func (p *Pipeline) Feed(b Block) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped.Load() {
		return ErrStopped
	}

	if n := p.cmds.Drain(func(c command) { c.apply(p) }); n > 0 {
		p.stats.reconfigurations.Add(uint64(n))
		p.publishConfig()
	}

	if b.FirstOfBurst {
		p.resetState()
		p.log.Debug("burst boundary, state cleared")
	}

	p.stats.inputSamples.Add(uint64(len(b.Samples)))
	p.chz.Feed(b.Samples, channelStage{p})
	p.stats.overflows.Store(p.chz.Overflows())
	return nil
}

// Run feeds blocks from in until it is closed, ctx is done or the
// pipeline is stopped.
func (p *Pipeline) Run(ctx context.Context, in <-chan Block) error {
	p.log.Debug("worker started")
	defer p.log.Debug("worker exited")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			if err := p.Feed(b); err != nil {
				return err
			}
		}
	}
}

// Stop discards pending commands and filter state and closes the audio
// FIFO, which then drains to silence. It waits for a block in progress to
// finish. Stop is idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		p.cmds.Close()

		p.mu.Lock()
		dropped := p.cmds.Drain(func(command) {})
		p.resetState()
		p.mu.Unlock()

		p.fifo.Close()
		p.log.Info("pipeline stopped",
			"input_samples", p.stats.inputSamples.Load(),
			"audio_frames", p.stats.audioFrames.Load(),
			"discarded_commands", dropped)
	})
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// RunningConfig returns the configuration in effect for the most recent
// block.
func (p *Pipeline) RunningConfig() Config {
	return *p.snapshot.Load()
}

func (p *Pipeline) publishConfig() {
	cfg := p.cfg
	p.snapshot.Store(&cfg)
}

func (p *Pipeline) applyChannel(sampleRate, centerFrequency, bandwidth float64) {
	changed, err := p.chz.Configure(sampleRate, centerFrequency, bandwidth)
	if err != nil {
		p.log.Warn("channel configuration rejected", "err", err)
		return
	}
	p.cfg.InputRate = sampleRate
	p.cfg.CenterFrequency = centerFrequency
	p.cfg.Bandwidth = bandwidth
	if changed {
		plan := p.chz.Plan()
		p.log.Debug("channelizer rebuilt", "plan", plan.String(), "stages", len(plan.Stages))
	}
}

// buildAudio creates the detector and everything after it for the
// running mode.
func (p *Pipeline) buildAudio() {
	rate := p.cfg.demodRate()
	switch p.cfg.Mode {
	case ModeAM:
		p.det = detector.NewAM(rate)
	default:
		p.det = detector.NewFM(rate, p.cfg.fmDeviation(), p.cfg.deemphasis())
	}

	p.post = nil
	if rate != p.cfg.AudioRate {
		r, err := resampler.New[float32](resampler.Params{
			InputRate:  rate,
			OutputRate: p.cfg.AudioRate,
			CutoffHz:   min(DefaultWFMAudioCut, autoCutoffFraction*p.cfg.AudioRate/2),
		})
		if err != nil {
			p.log.Error("audio resampler design failed", "err", err)
		} else {
			p.post = r
		}
	}

	p.lpf = nil
	if p.cfg.AudioCutoffHz > 0 {
		h, err := filter.DesignLowPassFilterAuto(p.cfg.AudioCutoffHz/p.cfg.AudioRate,
			audioFilterTransition, audioFilterAttenuation, 1)
		if err != nil {
			p.log.Warn("audio filter disabled", "err", err)
		} else {
			p.lpf = filter.NewFIR[float32](h)
		}
	}
}

// rebuildResampler designs the channel resampler for the current format.
func (p *Pipeline) rebuildResampler() {
	if !p.haveFormat {
		return
	}
	params, clamped := p.cfg.resamplerParams(p.format.SampleRate, p.cfg.demodRate())
	if clamped {
		p.log.Warn("resampler cutoff does not fit the channel, using default",
			"cutoff", p.cfg.Resampler.CutoffHz, "channel_rate", p.format.SampleRate)
	}
	r, err := resampler.New[float32](params)
	if err != nil {
		p.log.Error("resampler design failed, muting", "err", err)
		p.res = nil
		return
	}
	p.res = r
	p.log.Debug("resampler rebuilt",
		"in", params.InputRate, "out", params.OutputRate,
		"cutoff", params.CutoffHz, "taps", r.Params().TapCount)
}

func (p *Pipeline) resetState() {
	p.chz.Reset()
	if p.res != nil {
		p.res.Reset()
	}
	if p.post != nil {
		p.post.Reset()
	}
	if p.lpf != nil {
		p.lpf.Reset()
	}
	p.gate.Reset()
	p.det.Reset()
	p.stats.squelchOpen.Store(false)
}

// reconfigure handles a channelizer format event.
func (p *Pipeline) reconfigure(f channelizer.Format) {
	p.format = f
	p.haveFormat = true
	p.fine.SetFreq(-f.Offset, f.SampleRate)
	p.rebuildResampler()

	storeFloat(&p.stats.channelRate, f.SampleRate)
	storeFloat(&p.stats.channelOffset, f.Offset)
	p.log.Info("channel format", "rate", f.SampleRate, "offset", f.Offset)
}

// process runs one channelizer output block through the audio chain.
func (p *Pipeline) process(block dsp.SampleBlock) {
	p.stats.channelSamples.Add(uint64(len(block)))
	if p.res == nil {
		return
	}

	p.baseband = block.ToComplex(p.baseband)
	p.fine.Mix(p.baseband)

	// Power estimation, squelch and detection run whether or not the gate
	// is open; only the output is muted.
	p.demodOut = p.demodOut[:0]
	for _, c := range p.baseband {
		p.res.Push(real(c), imag(c))
		for {
			yr, yi, ok := p.res.Next()
			if !ok {
				break
			}
			open := p.gate.Feed(float64(yr*yr + yi*yi))
			a := p.det.Demod(complex(yr, yi))
			if !open {
				a = 0
			}
			p.demodOut = append(p.demodOut, a)
		}
	}

	out := p.demodOut
	if p.post != nil {
		if cap(p.zeros) < len(out) {
			p.zeros = make([]float32, len(out))
		}
		p.postRe, p.postIm = p.post.Process(p.postRe[:0], p.postIm[:0], out, p.zeros[:len(out)])
		out = p.postRe
	}

	vol := float32(p.cfg.Volume)
	p.frames = p.frames[:0]
	for _, a := range out {
		if p.lpf != nil {
			a = p.lpf.Filter(a)
		}
		p.frames = append(p.frames, audio.Mono(dsp.SaturateFloat(a*vol)))
	}

	written := p.fifo.Write(p.frames)
	p.stats.audioFrames.Add(uint64(written))
	p.stats.fifoDropped.Store(p.fifo.Dropped())
	p.stats.squelchOpen.Store(p.gate.IsOpen())
	storeFloat(&p.stats.powerDB, p.gate.AverageDB())
}

// channelStage adapts the pipeline to channelizer.Sink without putting
// Reconfigure on the public API.
type channelStage struct{ p *Pipeline }

func (s channelStage) Reconfigure(f channelizer.Format) {
	if s.p.tap != nil {
		s.p.tap.Reconfigure(f)
	}
	s.p.reconfigure(f)
}

func (s channelStage) Feed(block dsp.SampleBlock) {
	if s.p.tap != nil {
		s.p.tap.Feed(block)
	}
	s.p.process(block)
}
