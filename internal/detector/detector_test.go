package detector

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 48000.0

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"am", AM},
		{"NFM", NFM},
		{"fm", NFM},
		{" wfm ", WFM},
		{"bfm", WFM},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseMode("usb")
	assert.Error(t, err)
}

func TestMode_TextRoundTrip(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("wfm")))
	assert.Equal(t, WFM, m)
	b, err := NFM.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "nfm", string(b))
	assert.Error(t, m.UnmarshalText([]byte("cw")))
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestMode_DefaultDeviation(t *testing.T) {
	assert.Zero(t, AM.DefaultDeviation())
	assert.Equal(t, NFMDeviation, NFM.DefaultDeviation())
	assert.Equal(t, WFMDeviation, WFM.DefaultDeviation())
}

func TestAM_RecoversModulation(t *testing.T) {
	const (
		carrier = 0.3
		index   = 0.5
		tone    = 1000.0
		n       = 48000
	)
	d := NewAM(testRate)

	var peak float32
	for i := range n {
		m := index * math.Sin(2*math.Pi*tone*float64(i)/testRate)
		// Arbitrary carrier phase rotation must not matter.
		c := complex64(cmplx.Rect(carrier*(1+m), 0.7*float64(i)))
		y := d.Demod(c)
		if i > n/2 {
			peak = max(peak, float32(math.Abs(float64(y))))
		}
	}
	assert.InDelta(t, index, peak, 0.05, "output is the modulation index")
	assert.InDelta(t, carrier, d.Carrier(), 0.01)
}

func TestAM_SilentChannel(t *testing.T) {
	d := NewAM(testRate)
	for range 100 {
		y := d.Demod(0)
		assert.False(t, math.IsNaN(float64(y)))
		assert.Zero(t, y)
	}
}

func TestFM_ConstantOffset(t *testing.T) {
	tests := []struct {
		name      string
		deviation float64
		freq      float64
		want      float32
	}{
		{"nfm_full_deviation", NFMDeviation, 5000, 1},
		{"nfm_half_negative", NFMDeviation, -2500, -0.5},
		{"wfm_at_high_rate", WFMDeviation, 37500, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := testRate
			if tt.deviation == WFMDeviation {
				rate = 4 * testRate
			}
			d := NewFM(rate, tt.deviation, 0)
			w := 2 * math.Pi * tt.freq / rate
			var y float32
			for i := range 64 {
				y = d.Demod(complex64(cmplx.Rect(0.2, w*float64(i))))
			}
			assert.InDelta(t, tt.want, y, 1e-3)
		})
	}
}

func TestFM_Deemphasis(t *testing.T) {
	d := NewFM(testRate, NFMDeviation, DefaultDeemphasis)
	w := 2 * math.Pi * 2500 / testRate

	first := d.Demod(1)
	assert.Zero(t, first)
	second := d.Demod(complex64(cmplx.Rect(1, w)))
	assert.Less(t, second, float32(0.5), "step response is smoothed")

	var y float32
	for i := 2; i < 2000; i++ {
		y = d.Demod(complex64(cmplx.Rect(1, w*float64(i))))
	}
	assert.InDelta(t, 0.5, y, 1e-3, "settles to the undeemphasised level")

	d.Reset()
	assert.Zero(t, d.Demod(1))
}
