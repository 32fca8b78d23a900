// Package synth is a small polyphonic synthesizer core. A Synth keeps track of
// held and released notes, evaluates a stack of oscillators for each of them
// and mixes everything down to one sample per call.
package synth

import (
	"cmp"
	"math"
	"slices"
	"strconv"
)

// Key identifies a pitch on the equal tempered scale, 69 being A4 (440Hz).
type Key int

const A4 Key = 69

// KeyToFreq returns the frequency of key in Hz.
func KeyToFreq(key Key) float64 {
	return 440 * math.Pow(2, float64(key-A4)/12)
}

// FreqToKey returns the key nearest to freq, which must be > 0.
func FreqToKey(freq float64) Key {
	return A4 + Key(math.Round(12*math.Log2(freq/440)))
}

var keyNames = []string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}

// String names the key in scientific pitch notation, 60 being C4.
func (k Key) String() string {
	pc := int(k) % 12
	if pc < 0 {
		pc += 12
	}
	octave := (int(k) - pc) / 12
	return keyNames[pc] + strconv.Itoa(octave-1)
}

type note struct {
	phase   float64
	elapsed float64
}

type keyedNote struct {
	key  Key
	freq float64
	note
}

// Synth is not safe for concurrent use. Callers that trigger notes from a
// different goroutine than the one pulling samples must serialize access
// themselves.
type Synth struct {
	envelope    *Envelope
	ringing     []keyedNote // sorted by key, keys unique
	releasing   []keyedNote // in note off order, keys may repeat
	rate        float64
	oscillators []*Oscillator
}

func New(sampleRate float64) *Synth {
	return &Synth{
		rate: sampleRate,
	}
}

func (s *Synth) SampleRate() float64 { return s.rate }

// PushOscillator adds an oscillator to the stack. Every note is rendered
// through every oscillator and the results are summed.
func (s *Synth) PushOscillator(o *Oscillator) {
	s.oscillators = append(s.oscillators, o)
}

// SetEnvelope installs the envelope shared by all notes. Passing nil removes
// it: held notes play at full level and released notes fall silent.
func (s *Synth) SetEnvelope(e *Envelope) {
	s.envelope = e
}

func (s *Synth) Envelope() *Envelope { return s.envelope }

func (s *Synth) findRinging(key Key) (int, bool) {
	return slices.BinarySearchFunc(s.ringing, key, func(n keyedNote, k Key) int {
		return cmp.Compare(n.key, k)
	})
}

// NoteOn starts key from phase zero. A key that is already held is restarted,
// releases of earlier strikes of the same key keep sounding.
func (s *Synth) NoteOn(key Key) {
	kn := keyedNote{key: key, freq: KeyToFreq(key)}
	i, found := s.findRinging(key)
	if found {
		s.ringing[i] = kn
		return
	}
	s.ringing = slices.Insert(s.ringing, i, kn)
}

// NoteOff moves a held key into its release phase, keeping its phase so the
// waveform continues without a jump. Without an envelope the note is dropped.
// Releasing a key that is not held does nothing.
func (s *Synth) NoteOff(key Key) {
	i, found := s.findRinging(key)
	if !found {
		return
	}
	kn := s.ringing[i]
	s.ringing = slices.Delete(s.ringing, i, i+1)

	if s.envelope == nil {
		return
	}
	kn.elapsed = 0
	s.releasing = append(s.releasing, kn)
}

func (s *Synth) oscSum(phase, freq float64) float64 {
	var out float64
	for _, o := range s.oscillators {
		out += o.Sample(phase, freq)
	}
	return out
}

// Sample renders the current mix and advances every note by one sample.
// Gains are taken at the elapsed time before the advance.
func (s *Synth) Sample() float64 {
	env := s.envelope

	var ringing float64
	for i := range s.ringing {
		n := &s.ringing[i]
		mult := 1.0
		if env != nil {
			mult = env.Multiplier(n.elapsed)
		}
		ringing += mult * s.oscSum(n.phase, n.freq)
	}

	var releasing float64
	for i := range s.releasing {
		n := &s.releasing[i]
		var mult float64
		if env != nil {
			if m, ok := env.ReleaseMultiplier(n.elapsed); ok {
				mult = m
			}
		}
		releasing += mult * s.oscSum(n.phase, n.freq)
	}

	dt := 1 / s.rate
	for i := range s.ringing {
		s.ringing[i].phase += s.ringing[i].freq / s.rate
		s.ringing[i].elapsed += dt
	}
	for i := range s.releasing {
		s.releasing[i].phase += s.releasing[i].freq / s.rate
		s.releasing[i].elapsed += dt
	}

	kept := s.releasing[:0]
	for _, n := range s.releasing {
		if env != nil && env.IsReleasing(n.elapsed) {
			kept = append(kept, n)
		}
	}
	s.releasing = kept

	return ringing + releasing
}

// Render fills dst with consecutive samples.
func (s *Synth) Render(dst []float64) {
	for i := range dst {
		dst[i] = s.Sample()
	}
}

// Active returns the number of held plus releasing notes.
func (s *Synth) Active() int {
	return len(s.ringing) + len(s.releasing)
}

func (s *Synth) Silent() bool {
	return s.Active() == 0
}

// Reset drops every note without a release.
func (s *Synth) Reset() {
	s.ringing = s.ringing[:0]
	s.releasing = s.releasing[:0]
}
