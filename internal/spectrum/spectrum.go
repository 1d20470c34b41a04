// Package spectrum estimates power spectra of complex sample runs. The CLI
// probe and the end-to-end tests use it to locate tones.
package spectrum

import (
	"errors"

	"github.com/tphakala/go-sdr-demod/internal/filter"
	"github.com/tphakala/go-sdr-demod/internal/mathutil"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// WindowBeta is the Kaiser β applied before the transform (about 90 dB
// sidelobe suppression).
const WindowBeta = 9.0

// ErrTooShort is returned when there are fewer than two samples.
var ErrTooShort = errors.New("spectrum: need at least two samples")

// Analyzer computes windowed power spectra of a fixed length. It reuses
// its buffers and is not safe for concurrent use.
type Analyzer struct {
	fft    *fourier.CmplxFFT
	window []float64
	norm   float64
	buf    []complex128
	power  []float64
}

// NewAnalyzer returns an analyzer for n-point transforms.
func NewAnalyzer(n int) *Analyzer {
	w := filter.KaiserWindow(n, WindowBeta)
	sum := floats.Sum(w)
	return &Analyzer{
		fft:    fourier.NewCmplxFFT(n),
		window: w,
		norm:   1 / (sum * sum),
		buf:    make([]complex128, n),
		power:  make([]float64, n),
	}
}

// Len returns the transform length.
func (a *Analyzer) Len() int { return len(a.window) }

// Power returns |X[k]|² in FFT order, normalised so a full-scale complex
// tone on a bin centre reads 1.0. The slice is reused by the next call.
func (a *Analyzer) Power(samples []complex128) []float64 {
	for i := range a.buf {
		a.buf[i] = samples[i] * complex(a.window[i], 0)
	}
	coeff := a.fft.Coefficients(a.buf, a.buf)
	for k, c := range coeff {
		a.power[k] = (real(c)*real(c) + imag(c)*imag(c)) * a.norm
	}
	return a.power
}

// Freq returns the centre frequency of bin k in Hz.
func (a *Analyzer) Freq(k int, sampleRate float64) float64 {
	return a.fft.Freq(k) * sampleRate
}

// Peak describes the strongest bin of a spectrum.
type Peak struct {
	Bin     int
	Freq    float64 // Hz, negative for the lower half
	PowerDB float64 // relative to a full-scale tone
	BinHz   float64
}

// FindPeak returns the strongest component of samples. The transform
// length is len(samples).
func FindPeak(samples []complex128, sampleRate float64) (Peak, error) {
	if len(samples) < 2 {
		return Peak{}, ErrTooShort
	}
	a := NewAnalyzer(len(samples))
	p := a.Power(samples)
	k := floats.MaxIdx(p)
	return Peak{
		Bin:     k,
		Freq:    a.Freq(k, sampleRate),
		PowerDB: mathutil.PowerToDB(p[k]),
		BinHz:   sampleRate / float64(len(samples)),
	}, nil
}
