package synth

import "math"

// Oscillator sums several detuned copies of a waveform. Voice v is evaluated
// at phase*detune^v and freq*detune^v. The output is not normalized, so it
// grows with the voice count.
type Oscillator struct {
	waveform Waveform
	voices   int
	detune   float64
}

// OscillatorOption configures an Oscillator.
type OscillatorOption func(*Oscillator)

// WithVoices sets the number of summed voices. Values below 1 are ignored.
func WithVoices(n int) OscillatorOption {
	return func(o *Oscillator) {
		if n > 0 {
			o.voices = n
		}
	}
}

// WithDetune sets the frequency ratio between consecutive voices.
func WithDetune(ratio float64) OscillatorOption {
	return func(o *Oscillator) {
		o.detune = ratio
	}
}

// NewOscillator wraps w with a single voice and no detune unless configured
// otherwise.
func NewOscillator(w Waveform, opts ...OscillatorOption) *Oscillator {
	o := &Oscillator{
		waveform: w,
		voices:   1,
		detune:   1.0,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *Oscillator) Voices() int     { return o.voices }
func (o *Oscillator) Detune() float64 { return o.detune }

// Sample implements Waveform, so oscillators can be nested.
func (o *Oscillator) Sample(phase, freq float64) float64 {
	var out float64
	for v := 0; v < o.voices; v++ {
		m := math.Pow(o.detune, float64(v))
		out += o.waveform.Sample(phase*m, freq*m)
	}
	return out
}
