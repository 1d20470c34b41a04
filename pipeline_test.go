package demod

import (
	"context"
	"io"
	"math"
	"math/cmplx"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/spectrum"
	"github.com/tphakala/go-sdr-demod/internal/testutil"
)

const (
	testInputRate = 48000.0
	testBlockSize = 1024
	testToneFreq  = 5000.0
	testBandwidth = 10000.0
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// scenarioConfig is the 48 ksps, 10 kHz channel at +5 kHz setup.
func scenarioConfig() Config {
	cfg := NFMConfig(testInputRate, testToneFreq)
	cfg.Bandwidth = testBandwidth
	return cfg
}

// fmBlock returns a carrier at fc frequency-modulated by a tone.
func fmBlock(n int, fc, deviation, toneHz, rate, amp float64) dsp.SampleBlock {
	block := make(dsp.SampleBlock, n)
	var phase float64
	for i := range block {
		block[i] = dsp.FromComplex(complex64(cmplx.Rect(amp, phase)))
		inst := fc + deviation*math.Sin(2*math.Pi*toneHz*float64(i)/rate)
		phase += 2 * math.Pi * inst / rate
	}
	return block
}

func feedAll(t *testing.T, p *Pipeline, input dsp.SampleBlock) {
	t.Helper()
	for i := 0; i < len(input); i += testBlockSize {
		require.NoError(t, p.Feed(Block{Samples: input[i:min(i+testBlockSize, len(input))]}))
	}
}

func readAll(fifo *FIFO) []Frame {
	var out []Frame
	buf := make([]Frame, 4096)
	for {
		n := fifo.Read(buf, 0)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

type tapRecorder struct {
	formats []ChannelFormat
	samples SampleBlock
}

func (r *tapRecorder) Reconfigure(f ChannelFormat) { r.formats = append(r.formats, f) }
func (r *tapRecorder) Feed(b SampleBlock)         { r.samples = append(r.samples, b...) }

func TestNew_Errors(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.InputRate = 0
	_, err = New(cfg, NewFIFO(16))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScenarioA_ChannelFormat(t *testing.T) {
	tap := &tapRecorder{}
	fifo := NewFIFO(DefaultFIFOFrames)
	p, err := New(scenarioConfig(), fifo, WithLogger(quietLogger()), WithChannelSink(tap))
	require.NoError(t, err)
	defer p.Stop()

	feedAll(t, p, testutil.ToneBlock(16*testBlockSize, testToneFreq, testInputRate, 0.5))

	require.Equal(t, []ChannelFormat{{SampleRate: 12000, Offset: -1000}}, tap.formats)
	assert.Len(t, tap.samples, 16*testBlockSize/4)

	st := p.Stats()
	assert.Equal(t, uint64(16*testBlockSize), st.InputSamples)
	assert.Equal(t, uint64(16*testBlockSize/4), st.ChannelSamples)
	assert.InDelta(t, 12000.0, st.ChannelRate, 0)
	assert.InDelta(t, -1000.0, st.ChannelOffset, 0)
	assert.True(t, st.SquelchOpen, "a -6 dB carrier opens a -40 dB squelch")
	assert.InDelta(t, -6.0, st.ChannelPowerDB, 1.0)
	assert.Zero(t, st.Overflows)

	// 12 kHz → 48 kHz audio: four frames per channel sample, give or take one.
	assert.InDelta(t, float64(4*len(tap.samples)), float64(st.AudioFrames), 1)
	assert.Len(t, readAll(fifo), int(st.AudioFrames))
}

func TestNFM_RecoversModulatingTone(t *testing.T) {
	const (
		toneHz = 1000.0
		n      = 48 * testBlockSize
		fftLen = 4096
	)
	fifo := NewFIFO(2 * n)
	p, err := New(scenarioConfig(), fifo, WithLogger(quietLogger()))
	require.NoError(t, err)

	feedAll(t, p, fmBlock(n, testToneFreq, 2500, toneHz, testInputRate, 0.5))
	frames := readAll(fifo)
	require.GreaterOrEqual(t, len(frames), fftLen)

	tail := make([]complex128, fftLen)
	for i, f := range frames[len(frames)-fftLen:] {
		assert.Equal(t, f.L, f.R, "mono output")
		tail[i] = complex(float64(f.L)/dsp.FullScale, 0)
	}
	peak, err := spectrum.FindPeak(tail, RateAudio)
	require.NoError(t, err)
	assert.InDelta(t, toneHz, math.Abs(peak.Freq), peak.BinHz)
	// Half of full deviation: a 0.5 sine, split over ±f bins.
	assert.InDelta(t, -12.0, peak.PowerDB, 1.5)
}

func TestAM_RecoversModulatingTone(t *testing.T) {
	const (
		toneHz = 800.0
		n      = 48 * testBlockSize
		fftLen = 4096
	)
	input := make(dsp.SampleBlock, n)
	for i := range input {
		m := 1 + 0.5*math.Sin(2*math.Pi*toneHz*float64(i)/testInputRate)
		input[i] = dsp.FromComplex(complex64(cmplx.Rect(0.3*m, 2*math.Pi*testToneFreq*float64(i)/testInputRate)))
	}

	cfg := AMConfig(testInputRate, testToneFreq)
	fifo := NewFIFO(2 * n)
	p, err := New(cfg, fifo, WithLogger(quietLogger()))
	require.NoError(t, err)
	feedAll(t, p, input)

	frames := readAll(fifo)
	require.GreaterOrEqual(t, len(frames), fftLen)
	tail := make([]complex128, fftLen)
	for i, f := range frames[len(frames)-fftLen:] {
		tail[i] = complex(float64(f.L)/dsp.FullScale, 0)
	}
	peak, err := spectrum.FindPeak(tail, RateAudio)
	require.NoError(t, err)
	assert.InDelta(t, toneHz, math.Abs(peak.Freq), peak.BinHz)
}

func TestScenarioB_NoiseStaysMuted(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Squelch.ThresholdDB = -20

	fifo := NewFIFO(DefaultFIFOFrames)
	p, err := New(cfg, fifo, WithLogger(quietLogger()))
	require.NoError(t, err)

	// 4000 wideband samples give 1000 channel samples.
	feedAll(t, p, testutil.NoiseBlock(4000, 0.01))

	st := p.Stats()
	require.Equal(t, uint64(1000), st.ChannelSamples)
	assert.False(t, st.SquelchOpen)
	assert.Less(t, st.ChannelPowerDB, -20.0)

	frames := readAll(fifo)
	require.NotEmpty(t, frames)
	for i, f := range frames {
		require.Equal(t, Frame{}, f, "frame %d not muted", i)
	}
}

func TestConfigure_AppliedBetweenBlocks(t *testing.T) {
	tap := &tapRecorder{}
	p, err := New(scenarioConfig(), NewFIFO(DefaultFIFOFrames), WithLogger(quietLogger()), WithChannelSink(tap))
	require.NoError(t, err)
	defer p.Stop()
	ctx := context.Background()

	block := testutil.ToneBlock(testBlockSize, testToneFreq, testInputRate, 0.5)
	require.NoError(t, p.Feed(Block{Samples: block}))

	require.NoError(t, p.Configure(ctx, testInputRate, 0, testBandwidth))
	require.NoError(t, p.ConfigureSquelch(ctx, -10, 100))
	require.NoError(t, p.ConfigureResampler(ctx, 4000, 16))
	require.NoError(t, p.ConfigureDemod(ctx, ModeAM, 0.25))

	// Nothing applies until the next block.
	assert.InDelta(t, testToneFreq, p.RunningConfig().CenterFrequency, 0)
	assert.Len(t, tap.formats, 1)

	require.NoError(t, p.Feed(Block{Samples: block}))
	rc := p.RunningConfig()
	assert.Zero(t, rc.CenterFrequency)
	assert.InDelta(t, -10.0, rc.Squelch.ThresholdDB, 0)
	assert.Equal(t, 100, rc.Squelch.HangSamples)
	assert.InDelta(t, 4000.0, rc.Resampler.CutoffHz, 0)
	assert.Equal(t, 16, rc.Resampler.TapCount)
	assert.Equal(t, ModeAM, rc.Mode)
	assert.InDelta(t, 0.25, rc.Volume, 0)
	assert.Equal(t, uint64(4), p.Stats().Reconfigurations)

	require.Len(t, tap.formats, 2)
	assert.Equal(t, ChannelFormat{SampleRate: 12000, Offset: 0}, tap.formats[1])
}

func TestConfigure_IdenticalChannelIsNoop(t *testing.T) {
	tap := &tapRecorder{}
	p, err := New(scenarioConfig(), NewFIFO(DefaultFIFOFrames), WithLogger(quietLogger()), WithChannelSink(tap))
	require.NoError(t, err)
	defer p.Stop()

	block := testutil.ToneBlock(testBlockSize, testToneFreq, testInputRate, 0.5)
	require.NoError(t, p.Feed(Block{Samples: block}))
	res := p.res

	require.NoError(t, p.Configure(context.Background(), testInputRate, testToneFreq, testBandwidth))
	require.NoError(t, p.Feed(Block{Samples: block}))
	assert.Len(t, tap.formats, 1, "no format event")
	assert.Same(t, res, p.res, "resampler not rebuilt")
}

func TestConfigure_RejectsFatalRequests(t *testing.T) {
	p, err := New(scenarioConfig(), NewFIFO(16), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer p.Stop()
	ctx := context.Background()

	assert.ErrorIs(t, p.Configure(ctx, 0, 0, 1000), ErrInvalidConfig)
	assert.ErrorIs(t, p.Configure(ctx, -1, 0, 1000), ErrInvalidConfig)
	assert.ErrorIs(t, p.Configure(ctx, testInputRate, 0, 0), ErrInvalidConfig)
	assert.ErrorIs(t, p.ConfigureSquelch(ctx, -10, -1), ErrInvalidConfig)
	assert.ErrorIs(t, p.ConfigureResampler(ctx, 1000, 0), ErrInvalidConfig)
	assert.ErrorIs(t, p.ConfigureResampler(ctx, -1, 16), ErrInvalidConfig)
	assert.ErrorIs(t, p.ConfigureDemod(ctx, Mode(7), 1), ErrInvalidConfig)
	assert.ErrorIs(t, p.ConfigureDemod(ctx, ModeAM, -1), ErrInvalidConfig)
	assert.Zero(t, p.cmds.Pending(), "rejected commands are never queued")
}

func TestConfigureResampler_OversizedCutoffFallsBack(t *testing.T) {
	fifo := NewFIFO(DefaultFIFOFrames)
	p, err := New(scenarioConfig(), fifo, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer p.Stop()

	require.NoError(t, p.ConfigureResampler(context.Background(), 20000, 24))
	feedAll(t, p, testutil.ToneBlock(4*testBlockSize, testToneFreq, testInputRate, 0.5))
	require.NotNil(t, p.res)
	assert.InDelta(t, 0.9*6000, p.res.Params().CutoffHz, 1e-9)
	assert.Positive(t, p.Stats().AudioFrames)
}

func TestConfigureDemod_WFMUsesHigherDetectorRate(t *testing.T) {
	cfg := WFMConfig(RateRTLSDRLow, 0)
	fifo := NewFIFO(1 << 16)
	p, err := New(cfg, fifo, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer p.Stop()

	feedAll(t, p, testutil.ToneBlock(32*testBlockSize, 10000, RateRTLSDRLow, 0.5))
	require.NotNil(t, p.post)
	assert.InDelta(t, float64(RateWFMDemod), p.res.Params().OutputRate, 0)

	// ~32 ms of input at 1.024 Msps is ~1536 frames at 48 kHz.
	assert.InDelta(t, 32*testBlockSize*RateAudio/RateRTLSDRLow, float64(p.Stats().AudioFrames), 64)

	require.NoError(t, p.ConfigureDemod(context.Background(), ModeNFM, 1))
	require.NoError(t, p.Feed(Block{Samples: testutil.ToneBlock(testBlockSize, 0, RateRTLSDRLow, 0.5)}))
	assert.Nil(t, p.post)
	assert.InDelta(t, float64(RateAudio), p.res.Params().OutputRate, 0)
}

func TestFeed_FIFOBackpressureDropsFrames(t *testing.T) {
	fifo := NewFIFO(16)
	p, err := New(scenarioConfig(), fifo, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer p.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 8 {
			_ = p.Feed(Block{Samples: testutil.ToneBlock(testBlockSize, testToneFreq, testInputRate, 0.5)})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Feed blocked on a full FIFO")
	}

	st := p.Stats()
	assert.Equal(t, uint64(16), st.AudioFrames)
	assert.Positive(t, st.FIFODropped)
	assert.Equal(t, uint64(fifo.Capacity()), st.AudioFrames)
}

func TestBurst_ResetsFiltersButNotOscillator(t *testing.T) {
	block := testutil.ToneBlock(testBlockSize, testToneFreq+300, testInputRate, 0.5)

	freshFIFO := NewFIFO(DefaultFIFOFrames)
	fresh, err := New(scenarioConfig(), freshFIFO, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, fresh.Feed(Block{Samples: block, FirstOfBurst: true}))
	want := readAll(freshFIFO)

	fifo := NewFIFO(DefaultFIFOFrames)
	p, err := New(scenarioConfig(), fifo, WithLogger(quietLogger()))
	require.NoError(t, err)
	feedAll(t, p, testutil.NoiseBlock(3*testBlockSize+5, 0.2))
	readAll(fifo)

	phase := p.fine.Phase()
	require.NotZero(t, phase)
	require.NoError(t, p.Feed(Block{Samples: block, FirstOfBurst: true}))
	got := readAll(fifo)

	// The FM detector ignores the constant rotation the kept oscillator
	// phase introduces, so the audio matches a fresh pipeline.
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].L, got[i].L, 2, "frame %d", i)
	}
}

func TestBurst_OscillatorPhaseKept(t *testing.T) {
	p, err := New(scenarioConfig(), NewFIFO(DefaultFIFOFrames), WithLogger(quietLogger()))
	require.NoError(t, err)
	feedAll(t, p, testutil.NoiseBlock(2*testBlockSize+8, 0.2))

	before := p.fine.Phase()
	p.mu.Lock()
	p.resetState()
	p.mu.Unlock()
	assert.Equal(t, before, p.fine.Phase())
	assert.False(t, p.gate.IsOpen())
}

func TestStop_Idempotent(t *testing.T) {
	fifo := NewFIFO(DefaultFIFOFrames)
	p, err := New(scenarioConfig(), fifo, WithLogger(quietLogger()))
	require.NoError(t, err)
	feedAll(t, p, testutil.ToneBlock(4*testBlockSize, testToneFreq, testInputRate, 0.5))
	queued := fifo.Available()
	require.Positive(t, queued)

	require.NoError(t, p.ConfigureSquelch(context.Background(), 0, 1))
	p.Stop()
	p.Stop()

	assert.True(t, fifo.Closed())
	assert.ErrorIs(t, p.Feed(Block{}), ErrStopped)
	assert.ErrorIs(t, p.Configure(context.Background(), testInputRate, 0, 1000), ErrStopped)
	assert.Zero(t, p.cmds.Pending(), "pending commands discarded")
	assert.InDelta(t, DefaultThresholdDB, p.RunningConfig().Squelch.ThresholdDB, 0)

	// Already-queued audio drains, then silence.
	assert.Len(t, readAll(fifo), queued)
	assert.Zero(t, fifo.Read(make([]Frame, 8), time.Second))
}

func TestStop_Concurrent(t *testing.T) {
	p, err := New(scenarioConfig(), NewFIFO(DefaultFIFOFrames), WithLogger(quietLogger()))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()
	assert.ErrorIs(t, p.Feed(Block{}), ErrStopped)
}

func TestRun(t *testing.T) {
	fifo := NewFIFO(DefaultFIFOFrames)
	p, err := New(scenarioConfig(), fifo, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer p.Stop()

	in := make(chan Block)
	errc := make(chan error, 1)
	go func() { errc <- p.Run(context.Background(), in) }()

	block := testutil.ToneBlock(testBlockSize, testToneFreq, testInputRate, 0.5)
	for range 4 {
		in <- Block{Samples: block}
	}
	// Retune from this goroutine while the worker runs.
	require.NoError(t, p.Configure(context.Background(), testInputRate, 0, testBandwidth))
	in <- Block{Samples: block}
	close(in)

	require.NoError(t, <-errc)
	assert.Equal(t, uint64(5*testBlockSize), p.Stats().InputSamples)
	assert.Zero(t, p.RunningConfig().CenterFrequency)
}

func TestRun_ContextCancel(t *testing.T) {
	p, err := New(scenarioConfig(), NewFIFO(16), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, make(chan Block)) }()
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestRun_StopsWithPipeline(t *testing.T) {
	p, err := New(scenarioConfig(), NewFIFO(16), WithLogger(quietLogger()))
	require.NoError(t, err)

	in := make(chan Block, 1)
	p.Stop()
	in <- Block{Samples: SampleBlock{{}}}
	assert.ErrorIs(t, p.Run(context.Background(), in), ErrStopped)
}

func TestDemodulate(t *testing.T) {
	input := fmBlock(24*testBlockSize, testToneFreq, 2500, 1000, testInputRate, 0.5)
	frames, st, err := Demodulate(scenarioConfig(), input, 1000, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Zero(t, st.FIFODropped)
	assert.Len(t, frames, int(st.AudioFrames))
	assert.InDelta(t, float64(len(input))*RateAudio/testInputRate, float64(len(frames)), 8)

	_, _, err = Demodulate(scenarioConfig(), input, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
