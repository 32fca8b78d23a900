package patch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/whyrusleeping/mmlsynth/synth"
)

func TestDefaultBuilds(t *testing.T) {
	p := Default()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	s, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.SampleRate() != 44100 {
		t.Fatalf("SampleRate() = %v, want 44100", s.SampleRate())
	}
	if s.Envelope() == nil || s.Envelope() == p.Envelope {
		t.Fatal("expected a copy of the patch envelope")
	}

	s.NoteOn(synth.A4)
	var peak float64
	for i := 0; i < 4410; i++ {
		if v := s.Sample(); v > peak {
			peak = v
		}
	}
	if peak == 0 {
		t.Fatal("default patch is silent")
	}
}

func TestParseFillsDefaults(t *testing.T) {
	p, err := Parse([]byte(`{"oscillators": [{"waveform": "saw", "voices": 2, "detune": 1.005, "gain": 0.5}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.SampleRate != 44100 || p.Tempo != 120 || p.Gain != 0.2 {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if p.Envelope != nil {
		t.Fatal("envelope should stay unset")
	}

	s, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	s.NoteOn(synth.A4)
	s.Sample()
	// saw starts at -1 per voice: 2 voices at half gain
	s2 := synth.New(44100)
	s2.PushOscillator(synth.NewOscillator(synth.Scaled(synth.Saw, 0.5), synth.WithVoices(2), synth.WithDetune(1.005)))
	s2.NoteOn(synth.A4)
	s2.Sample()
	for i := 0; i < 100; i++ {
		if a, b := s.Sample(), s2.Sample(); a != b {
			t.Fatalf("sample %d = %v, want %v", i, a, b)
		}
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		`{`,
		`{"unknown": 1}`,
		`{"sample_rate": -1}`,
		`{"tempo": -5}`,
		`{"oscillators": [{"waveform": "triangle"}]}`,
		`{"oscillators": [{"waveform": "sine", "voices": -2}]}`,
		`{"envelope": {"attack": -1}}`,
		`{"effects": {"lowpass": -100}}`,
	}
	for _, src := range bad {
		if _, err := Parse([]byte(src)); err == nil {
			t.Fatalf("Parse(%s) expected error", src)
		}
	}
}

func TestLoadWithScript(t *testing.T) {
	dir := t.TempDir()
	script := "function wave(phase, freq)\n  return math.sin(2 * math.pi * phase)\nend\n"
	if err := os.WriteFile(filepath.Join(dir, "sine.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	patch := `{
  "sample_rate": 22050,
  "oscillators": [{"script": "sine.lua"}],
  "envelope": {"attack": 0.01, "decay": 0.1, "sustain": 0.5, "release": 0.2},
  "effects": {"lowpass": 3000, "highpass": 40, "delay_ms": 100, "delay_decay": 0.3, "compress": 0.8}
}`
	path := filepath.Join(dir, "patch.json")
	if err := os.WriteFile(path, []byte(patch), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.SampleRate() != 22050 {
		t.Fatalf("SampleRate() = %v, want 22050", s.SampleRate())
	}

	chain, err := p.BuildEffects()
	if err != nil {
		t.Fatalf("BuildEffects() error = %v", err)
	}
	if len(chain.Processors) != 4 {
		t.Fatalf("processors = %d, want 4", len(chain.Processors))
	}
	if chain.LowPass == nil || chain.LowPass.Cutoff() != 3000 {
		t.Fatal("low pass not exposed")
	}

	set, err := chain.Setter("lowpass.cutoff")
	if err != nil {
		t.Fatalf("Setter() error = %v", err)
	}
	set(1500)
	if chain.LowPass.Cutoff() != 1500 {
		t.Fatalf("Cutoff() = %v, want 1500", chain.LowPass.Cutoff())
	}
	for _, target := range []string{"delay.decay", "compressor.threshold", "highpass.cutoff"} {
		if _, err := chain.Setter(target); err != nil {
			t.Fatalf("Setter(%q) error = %v", target, err)
		}
	}
	for _, target := range []string{"lowpass", "reverb.size", "delay.wobble"} {
		if _, err := chain.Setter(target); err == nil {
			t.Fatalf("Setter(%q) expected error", target)
		}
	}
}

func TestLoadMissingScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patch.json")
	if err := os.WriteFile(path, []byte(`{"oscillators": [{"script": "nope.lua"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := p.Build(); err == nil {
		t.Fatal("expected error for missing script")
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing patch")
	}
}

func TestParseDefaultsDelayDecay(t *testing.T) {
	p, err := Parse([]byte(`{"effects": {"delay_ms": 100}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Effects.DelayDecay != DefaultDelayDecay {
		t.Fatalf("DelayDecay = %v, want %v", p.Effects.DelayDecay, DefaultDelayDecay)
	}
	c, err := p.BuildEffects()
	if err != nil {
		t.Fatalf("BuildEffects() error = %v", err)
	}
	set, err := c.Setter("delay.decay")
	if err != nil || set == nil {
		t.Fatalf("Setter(delay.decay) = %v", err)
	}

	// an impulse comes back one delay later, scaled by the decay
	first := true
	st := c.Apply(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{}
			if first {
				samples[i] = [2]float64{1, 1}
				first = false
			}
		}
		return len(samples), true
	}))
	buf := make([][2]float64, p.SampleRate/10+1)
	st.Stream(buf)
	if got := buf[p.SampleRate/10][0]; got != DefaultDelayDecay {
		t.Fatalf("echo = %v, want %v", got, DefaultDelayDecay)
	}
}

func TestValidateRejectsDelayWithoutFeedback(t *testing.T) {
	p := Default()
	p.Effects.DelayMs = 100
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for delay without decay")
	}
	p.Effects.DelayDecay = 1
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for delay decay 1")
	}
	p.Effects.DelayDecay = 0.5
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestChainTail(t *testing.T) {
	p := Default()
	c, err := p.BuildEffects()
	if err != nil {
		t.Fatalf("BuildEffects() error = %v", err)
	}
	if c.Tail() != 0 {
		t.Fatalf("Tail() without delay = %v, want 0", c.Tail())
	}

	p.Effects.DelayMs = 100
	p.Effects.DelayDecay = 0.5
	c, err = p.BuildEffects()
	if err != nil {
		t.Fatalf("BuildEffects() error = %v", err)
	}
	if got := c.Tail(); got != time.Second {
		t.Fatalf("Tail() = %v, want 1s", got)
	}

	p.Effects.DelayDecay = 0.999
	c, err = p.BuildEffects()
	if err != nil {
		t.Fatalf("BuildEffects() error = %v", err)
	}
	if got := c.Tail(); got != MaxTail {
		t.Fatalf("Tail() = %v, want %v", got, MaxTail)
	}
}

func TestBuildEffectsRejectsBadDelay(t *testing.T) {
	p := Default()
	p.Effects.DelayMs = 100
	p.Effects.DelayDecay = 1.5
	if _, err := p.BuildEffects(); err == nil {
		t.Fatal("expected error for delay decay >= 1")
	}
}
