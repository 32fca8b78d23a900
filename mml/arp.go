package mml

import (
	"fmt"

	"github.com/whyrusleeping/mmlsynth/synth"
)

// Arpeggio cycles through keys for steps notes, one eighth each, and returns
// the timeline like Parse would. A negative key rests for its step.
func Arpeggio(keys []synth.Key, steps int, opts ...Option) ([]Event, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("arpeggio needs at least one key")
	}
	if steps < 0 {
		return nil, fmt.Errorf("arpeggio steps must be >= 0: %d", steps)
	}

	p := &parser{tempo: DefaultTempo}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	length := NoteLength(p.tempo)

	events := make([]Event, 0, 2*steps)
	for i := 0; i < steps; i++ {
		key := keys[i%len(keys)]
		if key < 0 {
			continue
		}
		start := float64(i) * length
		events = append(events,
			Event{Position: start, Kind: NoteOn, Key: key},
			Event{Position: start + length, Kind: NoteOff, Key: key},
		)
	}
	return events, nil
}
