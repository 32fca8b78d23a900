package effects

import (
	"fmt"
	"math"

	"github.com/gopxl/beep"
)

// Compressor follows the signal level and pulls it down once it passes the
// threshold. attack and release are smoothing coefficients in (0, 1]: larger
// values react faster.
type Compressor struct {
	threshold float64
	ratio     float64
	attack    float64
	release   float64
	envelope  float64
}

func NewCompressor(threshold, ratio, attack, release float64) (*Compressor, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("compressor threshold must be > 0: %f", threshold)
	}
	if ratio < 0 {
		return nil, fmt.Errorf("compressor ratio must be >= 0: %f", ratio)
	}
	if attack <= 0 || attack > 1 || release <= 0 || release > 1 {
		return nil, fmt.Errorf("compressor attack and release must be in (0, 1]: %f, %f", attack, release)
	}
	return &Compressor{
		threshold: threshold,
		ratio:     ratio,
		attack:    attack,
		release:   release,
	}, nil
}

func (c *Compressor) ProcessSample(v float64) float64 {
	level := math.Abs(v)
	if level > c.envelope {
		c.envelope += (level - c.envelope) * c.attack
	} else {
		c.envelope += (level - c.envelope) * c.release
	}

	if c.envelope <= c.threshold {
		return v
	}

	gainReduction := math.Pow(c.threshold/c.envelope, c.ratio)
	return v * gainReduction
}

func (c *Compressor) Process(src beep.Streamer) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		n, ok = src.Stream(samples)
		for i := range samples[:n] {
			y := c.ProcessSample(samples[i][0])
			samples[i][0] = y
			samples[i][1] = y
		}
		return n, ok
	})
}

func (c *Compressor) GetSetter(name string) func(float64) {
	switch name {
	case "threshold":
		return func(v float64) {
			if v > 0 {
				c.threshold = v
			}
		}
	case "ratio":
		return func(v float64) {
			if v >= 0 {
				c.ratio = v
			}
		}
	default:
		return nil
	}
}
