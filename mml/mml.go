// Package mml turns a minimal music macro language into a sorted timeline of
// note events for the synth.
//
// The language has one character per token:
//
//	a b c d e f g   play the note for one eighth
//	r               rest for one eighth
//	;               rewind to the start and begin another voice
//
// Notes sit in the octave around A4 (key 69): c is key 60, b is key 71.
package mml

import (
	"fmt"
	"sort"

	"github.com/whyrusleeping/mmlsynth/synth"
)

const DefaultTempo = 120.0

// UnknownTokenError reports the first character that is not part of the
// language. Parsing stops there and returns no events.
type UnknownTokenError struct {
	Char   rune
	Offset int
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %q at offset %d", e.Char, e.Offset)
}

type parser struct {
	tempo float64
}

// Option configures Parse.
type Option func(*parser)

// WithTempo sets the tempo in beats per minute. Non-positive values are
// ignored.
func WithTempo(bpm float64) Option {
	return func(p *parser) {
		if bpm > 0 {
			p.tempo = bpm
		}
	}
}

var relativeKeys = map[rune]synth.Key{
	'c': -9,
	'd': -7,
	'e': -5,
	'f': -4,
	'g': -2,
	'a': 0,
	'b': 2,
}

// NoteKey maps a note name to its key.
func NoteKey(name rune) (synth.Key, bool) {
	rel, ok := relativeKeys[name]
	if !ok {
		return 0, false
	}
	return synth.A4 + rel, true
}

// NoteLength returns the duration of one token in seconds at the given tempo.
func NoteLength(tempo float64) float64 {
	return 240.0 / tempo / 8.0
}

// Parse translates src into events sorted by position.
func Parse(src string, opts ...Option) ([]Event, error) {
	p := &parser{tempo: DefaultTempo}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	length := NoteLength(p.tempo)
	var elapsed float64
	var events []Event

	for i, ch := range src {
		switch ch {
		case 'a', 'b', 'c', 'd', 'e', 'f', 'g':
			key, _ := NoteKey(ch)
			events = append(events,
				Event{Position: elapsed, Kind: NoteOn, Key: key},
				Event{Position: elapsed + length, Kind: NoteOff, Key: key},
			)
			elapsed += length
		case 'r':
			elapsed += length
		case ';':
			elapsed = 0
		default:
			return nil, &UnknownTokenError{Char: ch, Offset: i}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Position < events[j].Position
	})

	return events, nil
}

// Duration returns the position of the last event, 0 for an empty timeline.
func Duration(events []Event) float64 {
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].Position
}
