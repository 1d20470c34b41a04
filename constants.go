package demod

// Common sample rates.
const (
	// RateAudio is the default PCM output rate.
	RateAudio = 48000

	// RateRTLSDR is a typical RTL2832U capture rate.
	RateRTLSDR = 2_400_000

	// RateRTLSDRLow is the highest RTL2832U rate without dropped samples
	// on most hosts.
	RateRTLSDRLow = 1_024_000

	// RateWFMDemod is the discriminator rate used for broadcast FM.
	RateWFMDemod = 4 * RateAudio
)

// Channel bandwidth presets in Hz.
const (
	BandwidthAM  = 10_000
	BandwidthNFM = 12_500
	BandwidthWFM = 200_000
)

// Defaults applied by DefaultConfig and New.
const (
	DefaultFIFOFrames   = 16384
	DefaultQueueSize    = 64
	DefaultVolume       = 1.0
	DefaultThresholdDB  = -40.0
	DefaultHangSamples  = 4800 // 100 ms at RateAudio
	DefaultAudioCutoff  = 4000.0
	DefaultWFMAudioCut  = 15000.0
	DefaultResampleTaps = 32

	// Resampler cutoff used when none is configured, as a fraction of the
	// lower Nyquist frequency.
	autoCutoffFraction = 0.9

	// Audio filter design parameters.
	audioFilterTransition  = 0.05 // of the audio rate
	audioFilterAttenuation = 60.0
)
