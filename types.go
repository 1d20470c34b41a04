package demod

import (
	"github.com/tphakala/go-sdr-demod/internal/audio"
	"github.com/tphakala/go-sdr-demod/internal/channelizer"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
)

// Re-exported so callers outside this module can build inputs and
// consume outputs.
type (
	// Sample is a fixed-point I/Q pair, full scale ±32768.
	Sample = dsp.Sample

	// SampleBlock is a run of samples.
	SampleBlock = dsp.SampleBlock

	// Frame is one stereo PCM frame.
	Frame = audio.Frame

	// FIFO is the bounded audio queue a pipeline writes into.
	FIFO = audio.FIFO

	// ChannelSink observes channelizer output; see WithChannelSink.
	ChannelSink = channelizer.Sink

	// ChannelFormat is the rate and residual offset of the channel stream.
	ChannelFormat = channelizer.Format
)

// NewFIFO creates an audio FIFO holding at least capacity frames.
func NewFIFO(capacity int) *FIFO {
	return audio.NewFIFO(capacity)
}
