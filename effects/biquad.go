// Package effects holds post-mix processors for the synth output. Each one
// wraps a beep.Streamer and works on the left channel, copying the result to
// the right one since the synth is mono.
package effects

import (
	"math"

	"github.com/gopxl/beep"
)

// Processor wraps a source streamer with an effect.
type Processor interface {
	Process(src beep.Streamer) beep.Streamer
}

// Tunable is a processor with parameters that can be changed while it runs.
// GetSetter returns nil for names it does not know.
type Tunable interface {
	Processor
	GetSetter(name string) func(float64)
}

// Chain applies procs to src in order.
func Chain(src beep.Streamer, procs ...Processor) beep.Streamer {
	for _, p := range procs {
		if p != nil {
			src = p.Process(src)
		}
	}
	return src
}

type biquadKind int

const (
	lowPass biquadKind = iota
	highPass
)

// butterworth Q
const defaultQ = 0.707

// Biquad is a second order low or high pass filter.
type Biquad struct {
	kind               biquadKind
	q                  float64
	cutoff             float64
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
	sampleRate         float64
}

// NewLowPass returns a Butterworth low pass filter.
func NewLowPass(cutoffFreq, sampleRate float64) *Biquad {
	b := &Biquad{
		kind:       lowPass,
		q:          defaultQ,
		sampleRate: sampleRate,
	}
	b.UpdateCutoff(cutoffFreq)
	return b
}

// NewHighPass returns a high pass filter with resonance q. q <= 0 selects a
// Butterworth response.
func NewHighPass(cutoffFreq, q, sampleRate float64) *Biquad {
	if q <= 0 {
		q = defaultQ
	}
	b := &Biquad{
		kind:       highPass,
		q:          q,
		sampleRate: sampleRate,
	}
	b.UpdateCutoff(cutoffFreq)
	return b
}

func (b *Biquad) Cutoff() float64 { return b.cutoff }

// UpdateCutoff recomputes the coefficients, keeping the filter history.
// The cutoff is clamped below Nyquist.
func (b *Biquad) UpdateCutoff(cutoffFreq float64) {
	nyquist := b.sampleRate / 2
	if cutoffFreq >= nyquist {
		cutoffFreq = nyquist * 0.999
	}
	if cutoffFreq < 1 {
		cutoffFreq = 1
	}
	b.cutoff = cutoffFreq

	wc := 2 * math.Pi * cutoffFreq / b.sampleRate
	cosw := math.Cos(wc)
	alpha := math.Sin(wc) / (2 * b.q)

	var b0, b1, b2 float64
	switch b.kind {
	case highPass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	default:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	}
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	b.b0 = b0 / a0
	b.b1 = b1 / a0
	b.b2 = b2 / a0
	b.a1 = a1 / a0
	b.a2 = a2 / a0
}

func (b *Biquad) ProcessSample(x float64) float64 {
	y := b.b0*x + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2

	b.x2, b.x1 = b.x1, x
	b.y2, b.y1 = b.y1, y
	return y
}

// Reset clears the filter history.
func (b *Biquad) Reset() {
	b.x1, b.x2, b.y1, b.y2 = 0, 0, 0, 0
}

func (b *Biquad) Process(src beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		n, ok = src.Stream(samples)
		for i := range samples[:n] {
			y := b.ProcessSample(samples[i][0])
			samples[i][0] = y
			samples[i][1] = y
		}
		return n, ok
	})
}

func (b *Biquad) GetSetter(name string) func(float64) {
	switch name {
	case "cutoff":
		return b.UpdateCutoff
	default:
		return nil
	}
}
