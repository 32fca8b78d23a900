// Package patch loads synth settings from JSON files.
//
// A patch looks like:
//
//	{
//	  "sample_rate": 44100,
//	  "tempo": 120,
//	  "gain": 0.2,
//	  "oscillators": [
//	    {"waveform": "fm", "mod_amp": 2, "mod_ratio": 3, "voices": 3, "detune": 1.01},
//	    {"script": "pluck.lua", "gain": 0.5}
//	  ],
//	  "envelope": {"attack": 0, "decay": 0.1, "sustain": 0.2, "release": 0.5},
//	  "effects": {"lowpass": 2000, "delay_ms": 150, "delay_decay": 0.4}
//	}
//
// Leaving out "envelope" gives notes that start and stop instantly, and
// "delay_decay" defaults to 0.4 when "delay_ms" is set.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"

	"github.com/whyrusleeping/mmlsynth/effects"
	"github.com/whyrusleeping/mmlsynth/synth"
)

type Oscillator struct {
	Waveform string  `json:"waveform,omitempty"`
	Script   string  `json:"script,omitempty"`
	Voices   int     `json:"voices,omitempty"`
	Detune   float64 `json:"detune,omitempty"`
	Gain     float64 `json:"gain,omitempty"`
	ModAmp   float64 `json:"mod_amp,omitempty"`
	ModRatio float64 `json:"mod_ratio,omitempty"`
}

// DefaultDelayDecay is the echo feedback used when a patch sets delay_ms
// without delay_decay.
const DefaultDelayDecay = 0.4

type Effects struct {
	LowPass    float64 `json:"lowpass,omitempty"`
	HighPass   float64 `json:"highpass,omitempty"`
	DelayMs    float64 `json:"delay_ms,omitempty"`
	DelayDecay float64 `json:"delay_decay,omitempty"`
	Compress   float64 `json:"compress,omitempty"`
}

type Patch struct {
	SampleRate  int             `json:"sample_rate"`
	Tempo       float64         `json:"tempo"`
	Gain        float64         `json:"gain"`
	Oscillators []Oscillator    `json:"oscillators"`
	Envelope    *synth.Envelope `json:"envelope,omitempty"`
	Effects     Effects         `json:"effects"`

	dir string
}

// Default mirrors the classic demo voice: a three voice FM unison with a short
// pluck envelope.
func Default() *Patch {
	return &Patch{
		SampleRate: 44100,
		Tempo:      120,
		Gain:       0.2,
		Oscillators: []Oscillator{{
			Waveform: "fm",
			ModAmp:   2,
			ModRatio: 3,
			Voices:   3,
			Detune:   1.01,
		}},
		Envelope: synth.NewEnvelope(0.0, 0.1, 0.2, 0.5),
	}
}

// Load reads a patch file. Unset fields take the values from Default, and
// script paths are resolved relative to the patch file.
func Load(path string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", path, err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// Parse decodes and validates a patch.
func Parse(data []byte) (*Patch, error) {
	def := Default()
	p := &Patch{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decoding patch: %w", err)
	}

	if p.SampleRate == 0 {
		p.SampleRate = def.SampleRate
	}
	if p.Tempo == 0 {
		p.Tempo = def.Tempo
	}
	if p.Gain == 0 {
		p.Gain = def.Gain
	}
	if len(p.Oscillators) == 0 {
		p.Oscillators = def.Oscillators
	}
	if p.Effects.DelayMs > 0 && p.Effects.DelayDecay == 0 {
		p.Effects.DelayDecay = DefaultDelayDecay
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Patch) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0: %d", p.SampleRate)
	}
	if p.Tempo <= 0 {
		return fmt.Errorf("tempo must be > 0: %f", p.Tempo)
	}
	for i, o := range p.Oscillators {
		if o.Voices < 0 {
			return fmt.Errorf("oscillator %d: voices must be >= 0: %d", i, o.Voices)
		}
		if o.Script == "" {
			if _, ok := synth.WaveformByName(o.Waveform); !ok && o.Waveform != "fm" {
				return fmt.Errorf("oscillator %d: unknown waveform %q", i, o.Waveform)
			}
		}
	}
	if p.Envelope != nil {
		if err := p.Envelope.Validate(); err != nil {
			return err
		}
	}
	fx := p.Effects
	if fx.LowPass < 0 || fx.HighPass < 0 || fx.DelayMs < 0 || fx.Compress < 0 {
		return fmt.Errorf("effect settings must be >= 0: %+v", fx)
	}
	if fx.DelayMs > 0 && (fx.DelayDecay <= 0 || fx.DelayDecay >= 1) {
		return fmt.Errorf("delay decay must be in (0, 1): %f", fx.DelayDecay)
	}
	return nil
}

func (p *Patch) waveform(o Oscillator) (synth.Waveform, error) {
	var w synth.Waveform
	switch {
	case o.Script != "":
		path := o.Script
		if !filepath.IsAbs(path) && p.dir != "" {
			path = filepath.Join(p.dir, path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading wave script: %w", err)
		}
		wt, err := synth.LuaWavetable(string(src), synth.DefaultTableSize)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.Script, err)
		}
		w = wt
	case o.Waveform == "fm":
		w = synth.FM(o.ModAmp, o.ModRatio)
	default:
		named, ok := synth.WaveformByName(o.Waveform)
		if !ok {
			return nil, fmt.Errorf("unknown waveform %q", o.Waveform)
		}
		w = named
	}

	if o.Gain != 0 && o.Gain != 1 {
		w = synth.Scaled(w, o.Gain)
	}
	return w, nil
}

// Build creates a synth with the patch oscillators and envelope installed.
func (p *Patch) Build() (*synth.Synth, error) {
	s := synth.New(float64(p.SampleRate))
	for i, o := range p.Oscillators {
		w, err := p.waveform(o)
		if err != nil {
			return nil, fmt.Errorf("oscillator %d: %w", i, err)
		}
		var opts []synth.OscillatorOption
		if o.Voices > 0 {
			opts = append(opts, synth.WithVoices(o.Voices))
		}
		if o.Detune > 0 {
			opts = append(opts, synth.WithDetune(o.Detune))
		}
		s.PushOscillator(synth.NewOscillator(w, opts...))
	}
	if p.Envelope != nil {
		env := *p.Envelope
		s.SetEnvelope(&env)
	}
	return s, nil
}

// Chain is the effect chain described by a patch. LowPass is kept separately
// so live controllers can sweep its cutoff.
type Chain struct {
	LowPass    *effects.Biquad
	Processors []effects.Processor

	rate   beep.SampleRate
	delay  *effects.Delay
	byName map[string]effects.Tunable
}

// MaxTail bounds Chain.Tail for delays with decay close to 1.
const MaxTail = 10 * time.Second

// Tail returns how long the chain keeps ringing after its input goes silent,
// so sources can keep feeding it zeros until the echoes have died out.
func (c *Chain) Tail() time.Duration {
	if c.delay == nil {
		return 0
	}
	return min(c.rate.D(c.delay.Tail()), MaxTail)
}

func (c *Chain) add(name string, t effects.Tunable) {
	if c.byName == nil {
		c.byName = make(map[string]effects.Tunable)
	}
	c.byName[name] = t
	c.Processors = append(c.Processors, t)
}

// Setter looks up a parameter as "effect.param", for example
// "lowpass.cutoff" or "delay.decay".
func (c *Chain) Setter(target string) (func(float64), error) {
	name, param, ok := strings.Cut(target, ".")
	if !ok {
		return nil, fmt.Errorf("bad effect parameter %q, want effect.param", target)
	}
	fx, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("patch has no %s effect", name)
	}
	set := fx.GetSetter(param)
	if set == nil {
		return nil, fmt.Errorf("%s has no parameter %q", name, param)
	}
	return set, nil
}

// BuildEffects creates the processors in signal order: high pass, low pass,
// delay, compressor.
func (p *Patch) BuildEffects() (*Chain, error) {
	sr := beep.SampleRate(p.SampleRate)
	rate := float64(p.SampleRate)
	fx := p.Effects
	c := &Chain{rate: sr}

	if fx.HighPass > 0 {
		c.add("highpass", effects.NewHighPass(fx.HighPass, 0, rate))
	}
	if fx.LowPass > 0 {
		c.LowPass = effects.NewLowPass(fx.LowPass, rate)
		c.add("lowpass", c.LowPass)
	}
	if fx.DelayMs > 0 {
		d, err := effects.NewDelay(sr, time.Duration(fx.DelayMs*float64(time.Millisecond)), fx.DelayDecay)
		if err != nil {
			return nil, err
		}
		c.delay = d
		c.add("delay", d)
	}
	if fx.Compress > 0 {
		cmp, err := effects.NewCompressor(fx.Compress, 1, 0.01, 0.0005)
		if err != nil {
			return nil, err
		}
		c.add("compressor", cmp)
	}
	return c, nil
}

// Apply wraps src with the chain.
func (c *Chain) Apply(src beep.Streamer) beep.Streamer {
	return effects.Chain(src, c.Processors...)
}
