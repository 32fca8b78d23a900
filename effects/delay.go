package effects

import (
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep"
)

// Delay is a feedback echo: every sample is fed back delay samples later,
// scaled by decay.
type Delay struct {
	buf      []float64
	delay    int
	decay    float64
	position int
}

func NewDelay(sr beep.SampleRate, amount time.Duration, decay float64) (*Delay, error) {
	n := sr.N(amount)
	if n <= 0 {
		return nil, fmt.Errorf("delay must be at least one sample: %s", amount)
	}
	if decay < 0 || decay >= 1 {
		return nil, fmt.Errorf("delay decay must be in [0, 1): %f", decay)
	}
	return &Delay{
		buf:   make([]float64, n),
		delay: n,
		decay: decay,
	}, nil
}

// Samples returns the delay length in samples.
func (d *Delay) Samples() int { return d.delay }

// echoFloor is -60dB relative to the input.
const echoFloor = 1e-3

// Tail returns how many samples after the input stops the echoes take to fall
// below -60dB at the current decay.
func (d *Delay) Tail() int {
	if d.decay <= 0 {
		return 0
	}
	repeats := math.Ceil(math.Log(echoFloor) / math.Log(d.decay))
	return int(repeats) * d.delay
}

func (d *Delay) SetDecay(v float64) {
	if v >= 0 && v < 1 {
		d.decay = v
	}
}

func (d *Delay) ProcessSample(x float64) float64 {
	ix := d.position % len(d.buf)
	y := x + d.buf[ix]
	d.buf[ix] = y * d.decay
	d.position++
	return y
}

func (d *Delay) Process(src beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		n, ok = src.Stream(samples)
		for i := range samples[:n] {
			y := d.ProcessSample(samples[i][0])
			samples[i][0] = y
			samples[i][1] = y
		}
		return n, ok
	})
}

func (d *Delay) GetSetter(name string) func(float64) {
	switch name {
	case "decay":
		return d.SetDecay
	default:
		return nil
	}
}
