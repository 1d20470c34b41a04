package demod

import (
	"math"
	"sync/atomic"
)

// Stats is a snapshot of pipeline counters.
type Stats struct {
	InputSamples   uint64
	ChannelSamples uint64
	AudioFrames    uint64

	// Overflows counts saturated fixed-point results in the channelizer.
	Overflows uint64

	// FIFODropped counts frames the audio FIFO rejected.
	FIFODropped uint64

	// Reconfigurations counts applied control commands.
	Reconfigurations uint64

	SquelchOpen    bool
	ChannelPowerDB float64

	// ChannelRate and ChannelOffset describe the channelizer output.
	ChannelRate   float64
	ChannelOffset float64
}

// counters are written by the worker and read from anywhere.
type counters struct {
	inputSamples     atomic.Uint64
	channelSamples   atomic.Uint64
	audioFrames      atomic.Uint64
	overflows        atomic.Uint64
	fifoDropped      atomic.Uint64
	reconfigurations atomic.Uint64
	squelchOpen      atomic.Bool
	powerDB          atomic.Uint64 // float64 bits
	channelRate      atomic.Uint64 // float64 bits
	channelOffset    atomic.Uint64 // float64 bits
}

func storeFloat(v *atomic.Uint64, f float64) { v.Store(math.Float64bits(f)) }
func loadFloat(v *atomic.Uint64) float64     { return math.Float64frombits(v.Load()) }

func (c *counters) snapshot() Stats {
	return Stats{
		InputSamples:     c.inputSamples.Load(),
		ChannelSamples:   c.channelSamples.Load(),
		AudioFrames:      c.audioFrames.Load(),
		Overflows:        c.overflows.Load(),
		FIFODropped:      c.fifoDropped.Load(),
		Reconfigurations: c.reconfigurations.Load(),
		SquelchOpen:      c.squelchOpen.Load(),
		ChannelPowerDB:   loadFloat(&c.powerDB),
		ChannelRate:      loadFloat(&c.channelRate),
		ChannelOffset:    loadFloat(&c.channelOffset),
	}
}
