package synth

import "math"

// Waveform maps a phase, measured in cycles, and the current frequency to an
// amplitude. Implementations must be pure: the synth evaluates the same
// waveform for many notes and voices within one tick.
type Waveform interface {
	Sample(phase, freq float64) float64
}

// WaveformFunc adapts an ordinary function to the Waveform interface.
type WaveformFunc func(phase, freq float64) float64

func (f WaveformFunc) Sample(phase, freq float64) float64 {
	return f(phase, freq)
}

func sineOsc(phase float64) float64 {
	return math.Sin(2 * math.Pi * phase)
}

func sawOsc(ph float64) float64 {
	_, phase := math.Modf(ph)
	if phase < 0 {
		phase++
	}
	return (2 * phase) - 1
}

func squareOsc(phase float64) float64 {
	if sineOsc(phase) >= 0 {
		return 1
	}
	return -1
}

// soft square: an overdriven sine clipped to [-1, 1]
func softSquareOsc(phase float64) float64 {
	value := sineOsc(phase) * 5
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	return value
}

var (
	Sine       Waveform = WaveformFunc(func(phase, _ float64) float64 { return sineOsc(phase) })
	Saw        Waveform = WaveformFunc(func(phase, _ float64) float64 { return sawOsc(phase) })
	Square     Waveform = WaveformFunc(func(phase, _ float64) float64 { return squareOsc(phase) })
	SoftSquare Waveform = WaveformFunc(func(phase, _ float64) float64 { return softSquareOsc(phase) })
)

// FM returns a sine carrier phase-modulated by a second sine running at
// modRatio times the carrier frequency.
func FM(modAmp, modRatio float64) Waveform {
	return WaveformFunc(func(phase, _ float64) float64 {
		return sineOsc(phase + modAmp*sineOsc(phase*modRatio))
	})
}

// Scaled multiplies the output of w by gain.
func Scaled(w Waveform, gain float64) Waveform {
	return WaveformFunc(func(phase, freq float64) float64 {
		return w.Sample(phase, freq) * gain
	})
}

// WaveformByName resolves the built-in waveform names used in patch files.
func WaveformByName(name string) (Waveform, bool) {
	switch name {
	case "sine":
		return Sine, true
	case "saw":
		return Saw, true
	case "square":
		return Square, true
	case "softsquare":
		return SoftSquare, true
	default:
		return nil, false
	}
}
