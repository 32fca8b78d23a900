package synth

import "fmt"

// Envelope is a linear attack/decay/sustain/release shape. Times are in
// seconds, Sustain is a level. An Envelope holds no playback state; notes
// carry their own elapsed time.
type Envelope struct {
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
}

func NewEnvelope(attack, decay, sustain, release float64) *Envelope {
	return &Envelope{
		Attack:  attack,
		Decay:   decay,
		Sustain: sustain,
		Release: release,
	}
}

// Validate reports negative parameters.
func (e *Envelope) Validate() error {
	switch {
	case e.Attack < 0:
		return fmt.Errorf("envelope attack must be >= 0: %f", e.Attack)
	case e.Decay < 0:
		return fmt.Errorf("envelope decay must be >= 0: %f", e.Decay)
	case e.Sustain < 0:
		return fmt.Errorf("envelope sustain must be >= 0: %f", e.Sustain)
	case e.Release < 0:
		return fmt.Errorf("envelope release must be >= 0: %f", e.Release)
	}
	return nil
}

// interpolate returns the value on the line through (x1, y1) and (x2, y2),
// but only for x in [x1, x2). A zero width segment never matches.
func interpolate(x1, y1, x2, y2, x float64) (float64, bool) {
	if x1 <= x && x < x2 {
		t := (x - x1) / (x2 - x1)
		return y1*(1-t) + y2*t, true
	}
	return 0, false
}

// Multiplier is the gain of a held note elapsed seconds after note on.
func (e *Envelope) Multiplier(elapsed float64) float64 {
	if v, ok := interpolate(0, 0, e.Attack, 1, elapsed); ok {
		return v
	}
	if v, ok := interpolate(e.Attack, 1, e.Attack+e.Decay, e.Sustain, elapsed); ok {
		return v
	}
	return e.Sustain
}

// ReleaseMultiplier is the gain of a released note elapsed seconds after note
// off. ok is false once the release has run out.
func (e *Envelope) ReleaseMultiplier(elapsed float64) (float64, bool) {
	return interpolate(0, e.Sustain, e.Release, 0, elapsed)
}

func (e *Envelope) IsReleasing(elapsed float64) bool {
	return elapsed < e.Release
}
