// Package analysis inspects rendered synth output: a ring buffer tap for live
// streams and a windowed magnitude spectrum with peak picking.
package analysis

import (
	"fmt"
	"sort"

	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/maddyblue/go-dsp/fft"
	"github.com/maddyblue/go-dsp/window"
)

// Spectrum is the one sided magnitude spectrum of a Hann windowed block.
type Spectrum struct {
	Magnitudes []float64
	BinWidth   float64
}

// Peak is a local maximum of a spectrum.
type Peak struct {
	Freq      float64
	Magnitude float64
}

func (p Peak) String() string {
	return fmt.Sprintf("%.1fHz %.4f", p.Freq, p.Magnitude)
}

// NewSpectrum analyses samples recorded at sampleRate.
func NewSpectrum(samples []float64, sampleRate float64) (*Spectrum, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("spectrum needs at least 2 samples: %d", len(samples))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("spectrum sample rate must be > 0: %f", sampleRate)
	}

	n := len(samples)
	win := window.Hann(n)
	windowed := make([]float64, n)
	vecmath.MulBlock(windowed, samples, win)

	bins := fft.FFTReal(windowed)
	half := n/2 + 1
	re := make([]float64, half)
	im := make([]float64, half)
	for i, c := range bins[:half] {
		re[i] = real(c) / float64(n)
		im[i] = imag(c) / float64(n)
	}

	mags := make([]float64, half)
	vecmath.Magnitude(mags, re, im)

	return &Spectrum{
		Magnitudes: mags,
		BinWidth:   sampleRate / float64(n),
	}, nil
}

// interpolatedPeak refines bin i with a parabola through its neighbours.
func (s *Spectrum) interpolatedPeak(i int) Peak {
	m := s.Magnitudes
	if i <= 0 || i >= len(m)-1 {
		return Peak{Freq: float64(i) * s.BinWidth, Magnitude: m[i]}
	}
	a, b, c := m[i-1], m[i], m[i+1]
	den := a - 2*b + c
	if den == 0 {
		return Peak{Freq: float64(i) * s.BinWidth, Magnitude: b}
	}
	p := 0.5 * (a - c) / den
	return Peak{
		Freq:      (float64(i) + p) * s.BinWidth,
		Magnitude: b - 0.25*(a-c)*p,
	}
}

// PeakFrequency returns the strongest component, ignoring DC.
func (s *Spectrum) PeakFrequency() Peak {
	best := 1
	for i := 2; i < len(s.Magnitudes); i++ {
		if s.Magnitudes[i] > s.Magnitudes[best] {
			best = i
		}
	}
	return s.interpolatedPeak(best)
}

// Peaks returns up to n local maxima above floor, strongest first.
func (s *Spectrum) Peaks(n int, floor float64) []Peak {
	var out []Peak
	m := s.Magnitudes
	for i := 1; i < len(m)-1; i++ {
		if m[i] > floor && m[i] > m[i-1] && m[i] >= m[i+1] {
			out = append(out, s.interpolatedPeak(i))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Magnitude > out[j].Magnitude
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
