package channelizer

import (
	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/halfband"
)

// Format describes the stream a channelizer emits after a rebuild.
type Format struct {
	SampleRate float64
	Offset     float64
}

// Sink consumes channelizer output. Reconfigure is always called before
// the first Feed that carries samples at the new format. The block passed
// to Feed is reused and must not be retained.
type Sink interface {
	Reconfigure(Format)
	Feed(dsp.SampleBlock)
}

type request struct {
	sampleRate      float64
	centerFrequency float64
	bandwidth       float64
}

// Channelizer runs a synthesized halfband cascade. It is owned by one
// worker goroutine.
type Channelizer struct {
	guard float64

	req        request
	configured bool
	plan       Plan
	stages     []*halfband.Stage
	pending    bool

	// Saturation counts of stages discarded by rebuilds.
	retired uint64

	out dsp.SampleBlock
}

// New returns an unconfigured channelizer. guard is passed to Synthesize.
func New(guard float64) *Channelizer {
	return &Channelizer{guard: guard}
}

// Configure plans and builds a new cascade, discarding the old one, and
// queues a format event for the next Feed. Repeating the running
// parameters changes nothing and reports false.
func (c *Channelizer) Configure(sampleRate, centerFrequency, bandwidth float64) (bool, error) {
	req := request{sampleRate, centerFrequency, bandwidth}
	if c.configured && req == c.req {
		return false, nil
	}

	plan, err := Synthesize(sampleRate, centerFrequency, bandwidth, c.guard)
	if err != nil {
		return false, err
	}

	stages := make([]*halfband.Stage, len(plan.Stages))
	for i, m := range plan.Stages {
		stages[i] = halfband.NewStage(m)
	}

	c.retired = c.Overflows()
	c.req = req
	c.plan = plan
	c.stages = stages
	c.configured = true
	c.pending = true
	return true, nil
}

// Plan returns the running plan.
func (c *Channelizer) Plan() Plan { return c.plan }

// Configured reports whether Configure has succeeded at least once.
func (c *Channelizer) Configured() bool { return c.configured }

// Feed runs block through the cascade and hands the decimated samples to
// sink in one call. Nothing is emitted before the first Configure.
func (c *Channelizer) Feed(block dsp.SampleBlock, sink Sink) {
	if !c.configured {
		return
	}
	if c.pending {
		c.pending = false
		sink.Reconfigure(Format{SampleRate: c.plan.OutputRate, Offset: c.plan.Offset})
	}

	c.out = c.out[:0]
next:
	for _, x := range block {
		for _, st := range c.stages {
			if !st.Work(&x) {
				continue next
			}
		}
		c.out = append(c.out, x)
	}
	if len(c.out) > 0 {
		sink.Feed(c.out)
	}
}

// Reset clears every stage's history without changing the plan.
func (c *Channelizer) Reset() {
	for _, st := range c.stages {
		st.Reset()
	}
}

// Overflows returns the total saturation count, including stages from
// earlier plans.
func (c *Channelizer) Overflows() uint64 {
	n := c.retired
	for _, st := range c.stages {
		n += st.Overflows()
	}
	return n
}
