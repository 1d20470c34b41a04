// Package demod is a multirate channel-selection and squelch-gated
// demodulation core for software-defined radio.
//
// A [Pipeline] takes blocks of wideband fixed-point I/Q samples and writes
// demodulated PCM frames into a bounded [FIFO]:
//
//	wideband I/Q
//	  → channelizer (halfband cascade, ±Fs/4 folding)
//	  → fine NCO mix by the residual offset
//	  → polyphase resampler to the demodulator rate
//	  → power estimate → squelch gate
//	  → AM / NFM / WFM detector → audio filter → FIFO
//
// # Quick Start
//
//	fifo := demod.NewFIFO(demod.DefaultFIFOFrames)
//	cfg := demod.NFMConfig(demod.RateRTLSDR, 250_000)
//	p, err := demod.New(cfg, fifo, demod.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer p.Stop()
//
//	go p.Run(ctx, blocks)
//
//	// Retune from any goroutine; applied between blocks.
//	err = p.Configure(ctx, demod.RateRTLSDR, -400_000, 12_500)
//
// # Threading
//
// All signal state belongs to the goroutine that calls [Pipeline.Feed]
// (or [Pipeline.Run]). Configure, ConfigureSquelch, ConfigureResampler and
// ConfigureDemod validate their arguments on the caller's goroutine and
// queue an immutable command; the worker applies every queued command
// before the next block, so one block is always processed under one
// configuration. [Pipeline.Stats] and [Pipeline.RunningConfig] may be read
// from anywhere.
//
// # Burst Boundaries
//
// A [Block] with FirstOfBurst set clears filter histories (halfband
// stages, resamplers, audio filter) and the squelch and detector state
// before it is processed. Oscillator phase is never reset.
package demod
