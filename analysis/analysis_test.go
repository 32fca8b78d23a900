package analysis

import (
	"math"
	"testing"

	"github.com/gopxl/beep"

	"github.com/whyrusleeping/mmlsynth/synth"
)

const rate = 44100

func render(keys []synth.Key, n int) []float64 {
	s := synth.New(rate)
	s.PushOscillator(synth.NewOscillator(synth.Sine))
	for _, k := range keys {
		s.NoteOn(k)
	}
	out := make([]float64, n)
	s.Render(out)
	return out
}

func TestPeakFrequencyOfA4(t *testing.T) {
	spec, err := NewSpectrum(render([]synth.Key{synth.A4}, 8192), rate)
	if err != nil {
		t.Fatalf("NewSpectrum() error = %v", err)
	}
	if len(spec.Magnitudes) != 8192/2+1 {
		t.Fatalf("len = %d, want %d", len(spec.Magnitudes), 8192/2+1)
	}

	peak := spec.PeakFrequency()
	if math.Abs(peak.Freq-440) > spec.BinWidth/2 {
		t.Fatalf("peak = %v, want 440Hz within %v", peak, spec.BinWidth/2)
	}
}

func TestPeaksOfChord(t *testing.T) {
	keys := []synth.Key{synth.A4, synth.A4 + 12}
	spec, err := NewSpectrum(render(keys, 16384), rate)
	if err != nil {
		t.Fatalf("NewSpectrum() error = %v", err)
	}

	peaks := spec.Peaks(2, 0.01)
	if len(peaks) != 2 {
		t.Fatalf("peaks = %v, want 2", peaks)
	}
	for _, want := range []float64{440, 880} {
		found := false
		for _, p := range peaks {
			if math.Abs(p.Freq-want) < spec.BinWidth {
				found = true
			}
		}
		if !found {
			t.Fatalf("no peak near %v in %v", want, peaks)
		}
	}
}

func TestNewSpectrumValidation(t *testing.T) {
	if _, err := NewSpectrum([]float64{1}, rate); err == nil {
		t.Fatal("expected error for short input")
	}
	if _, err := NewSpectrum([]float64{1, 2, 3}, 0); err == nil {
		t.Fatal("expected error for zero rate")
	}
}

type counter struct {
	n int
}

func (c *counter) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i][0] = float64(c.n)
		samples[i][1] = float64(c.n)
		c.n++
	}
	return len(samples), true
}

func (c *counter) Err() error { return nil }

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder(&counter{}, 4)
	var s beep.Streamer = r

	buf := make([]float64, 8)
	if n := r.Snapshot(buf); n != 0 {
		t.Fatalf("Snapshot() = %d before streaming, want 0", n)
	}

	samples := make([][2]float64, 3)
	s.Stream(samples)
	if n := r.Snapshot(buf); n != 3 || buf[0] != 0 || buf[2] != 2 {
		t.Fatalf("Snapshot() = %d %v, want 0..2", n, buf[:n])
	}

	s.Stream(samples)
	n := r.Snapshot(buf)
	if n != 4 {
		t.Fatalf("Snapshot() = %d, want 4", n)
	}
	for i, want := range []float64{2, 3, 4, 5} {
		if buf[i] != want {
			t.Fatalf("buf[%d] = %v, want %v", i, buf[i], want)
		}
	}
	if r.Recorded() != 6 {
		t.Fatalf("Recorded() = %d, want 6", r.Recorded())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
}
