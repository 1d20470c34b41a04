package channelizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/nco"
	"github.com/tphakala/go-sdr-demod/internal/spectrum"
	"github.com/tphakala/go-sdr-demod/internal/testutil"
)

const testBlockSize = 1024

type event struct {
	format *Format
	n      int
}

// recorder is a Sink that keeps a copy of everything it is given.
type recorder struct {
	events  []event
	samples dsp.SampleBlock
}

func (r *recorder) Reconfigure(f Format) {
	r.events = append(r.events, event{format: &f})
}

func (r *recorder) Feed(b dsp.SampleBlock) {
	r.events = append(r.events, event{n: len(b)})
	r.samples = append(r.samples, b...)
}

func (r *recorder) formats() []Format {
	var out []Format
	for _, e := range r.events {
		if e.format != nil {
			out = append(out, *e.format)
		}
	}
	return out
}

func TestFeed_BeforeConfigure(t *testing.T) {
	c := New(0)
	rec := &recorder{}
	c.Feed(testutil.ToneBlock(testBlockSize, 0, testRate, 0.5), rec)
	assert.Empty(t, rec.events)
	assert.False(t, c.Configured())
}

func TestFeed_ReconfigureBeforeSamples(t *testing.T) {
	c := New(0)
	changed, err := c.Configure(testRate, 5000, 10000)
	require.NoError(t, err)
	require.True(t, changed)

	rec := &recorder{}
	block := testutil.ToneBlock(testBlockSize, 5000, testRate, 0.5)
	c.Feed(block, rec)
	c.Feed(block, rec)

	require.Len(t, rec.events, 3)
	require.NotNil(t, rec.events[0].format, "format event comes first")
	assert.Equal(t, Format{SampleRate: 12000, Offset: -1000}, *rec.events[0].format)
	assert.Equal(t, testBlockSize/4, rec.events[1].n)
	assert.Equal(t, testBlockSize/4, rec.events[2].n)
}

func TestFeed_OddBlockCarriesCadence(t *testing.T) {
	c := New(0)
	_, err := c.Configure(testRate, 0, 10000)
	require.NoError(t, err)

	rec := &recorder{}
	for range 4 {
		c.Feed(testutil.ToneBlock(3, 0, testRate, 0.5), rec)
	}
	// 12 inputs through two stages yield 3 outputs regardless of blocking.
	assert.Len(t, rec.samples, 3)
}

func TestFeed_Passthrough(t *testing.T) {
	c := New(0)
	_, err := c.Configure(testRate, 0, testRate)
	require.NoError(t, err)

	rec := &recorder{}
	block := testutil.NoiseBlock(testBlockSize, 0.3)
	c.Feed(block, rec)
	assert.Equal(t, block, rec.samples)
	assert.Equal(t, []Format{{SampleRate: testRate, Offset: 0}}, rec.formats())
}

func TestConfigure_Idempotent(t *testing.T) {
	block := testutil.NoiseBlock(testBlockSize, 0.3)

	reference := New(0)
	_, err := reference.Configure(testRate, 5000, 10000)
	require.NoError(t, err)
	want := &recorder{}
	reference.Feed(block, want)
	reference.Feed(block, want)

	c := New(0)
	_, err = c.Configure(testRate, 5000, 10000)
	require.NoError(t, err)
	got := &recorder{}
	c.Feed(block, got)

	first, second := c.stages[0], c.stages[1]
	changed, err := c.Configure(testRate, 5000, 10000)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, first, c.stages[0])
	assert.Same(t, second, c.stages[1])

	c.Feed(block, got)
	assert.Equal(t, want.samples, got.samples, "state survives a repeated configure")
	assert.Len(t, got.formats(), 1, "no event for a repeated configure")
}

func TestConfigure_RebuildEmitsOneEvent(t *testing.T) {
	c := New(0)
	rec := &recorder{}
	block := testutil.NoiseBlock(testBlockSize, 0.1)

	_, err := c.Configure(testRate, 5000, 10000)
	require.NoError(t, err)
	c.Feed(block, rec)

	// Two rebuilds between blocks collapse into the latest format.
	_, err = c.Configure(testRate, 0, 10000)
	require.NoError(t, err)
	_, err = c.Configure(testRate, -6000, 12000)
	require.NoError(t, err)
	c.Feed(block, rec)

	assert.Equal(t, []Format{
		{SampleRate: 12000, Offset: -1000},
		{SampleRate: 12000, Offset: 0},
	}, rec.formats())
}

func TestConfigure_ErrorKeepsRunningChain(t *testing.T) {
	c := New(0)
	_, err := c.Configure(testRate, 5000, 10000)
	require.NoError(t, err)

	_, err = c.Configure(0, 5000, 10000)
	require.ErrorIs(t, err, ErrInvalidRate)
	assert.InDelta(t, 12000.0, c.Plan().OutputRate, 0)
}

func TestReset(t *testing.T) {
	block := testutil.NoiseBlock(testBlockSize, 0.3)

	fresh := New(0)
	_, err := fresh.Configure(testRate, 5000, 10000)
	require.NoError(t, err)
	want := &recorder{}
	fresh.Feed(block, want)

	c := New(0)
	_, err = c.Configure(testRate, 5000, 10000)
	require.NoError(t, err)
	c.Feed(testutil.ToneBlock(77, 3000, testRate, 0.4), &recorder{})
	c.Reset()
	got := &recorder{}
	c.Feed(block, got)

	assert.Equal(t, want.samples, got.samples)
}

func TestOverflows_SurviveRebuild(t *testing.T) {
	c := New(0)
	_, err := c.Configure(testRate, -6000, 12000) // lower first
	require.NoError(t, err)

	block := make(dsp.SampleBlock, 8)
	for i := range block {
		block[i] = dsp.Sample{Re: dsp.SampleMin, Im: dsp.SampleMin}
	}
	c.Feed(block, &recorder{})
	n := c.Overflows()
	require.Positive(t, n)

	_, err = c.Configure(testRate, 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, n, c.Overflows())
}

func TestScenarioA_ToneAtDC(t *testing.T) {
	const (
		toneFreq = 5000.0
		inputLen = 16 * testBlockSize
		fftLen   = 1024
	)

	c := New(0)
	_, err := c.Configure(testRate, toneFreq, 10000)
	require.NoError(t, err)

	rec := &recorder{}
	input := testutil.ToneBlock(inputLen, toneFreq, testRate, 0.5)
	for i := 0; i < inputLen; i += testBlockSize {
		c.Feed(input[i:i+testBlockSize], rec)
	}
	formats := rec.formats()
	require.Len(t, formats, 1)
	f := formats[0]

	// Fine mix by the residual offset.
	osc := nco.New()
	osc.SetFreq(-f.Offset, f.SampleRate)
	baseband := rec.samples.ToComplex(nil)
	osc.Mix(baseband)

	tail := make([]complex128, fftLen)
	for i, s := range baseband[len(baseband)-fftLen:] {
		tail[i] = complex128(s)
	}
	peak, err := spectrum.FindPeak(tail, f.SampleRate)
	require.NoError(t, err)

	assert.LessOrEqual(t, math.Abs(peak.Freq), peak.BinHz/2, "tone lands on DC")
	assert.InDelta(t, -6.0, peak.PowerDB, 0.5, "tone level preserved")
	assert.Zero(t, c.Overflows())
}
