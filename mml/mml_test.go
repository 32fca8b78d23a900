package mml

import (
	"errors"
	"testing"

	"github.com/whyrusleeping/mmlsynth/synth"
)

func TestNoteKey(t *testing.T) {
	want := map[rune]synth.Key{
		'a': 69,
		'b': 71,
		'c': 60,
		'd': 62,
		'e': 64,
		'f': 65,
		'g': 67,
	}
	for name, key := range want {
		got, ok := NoteKey(name)
		if !ok || got != key {
			t.Fatalf("NoteKey(%q) = %d, %v, want %d", name, got, ok, key)
		}
	}
	if _, ok := NoteKey('h'); ok {
		t.Fatal("NoteKey('h') should fail")
	}
}

func TestParseSequence(t *testing.T) {
	events, err := Parse("cre")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Event{
		{Position: 0, Kind: NoteOn, Key: 60},
		{Position: 0.25, Kind: NoteOff, Key: 60},
		{Position: 0.5, Kind: NoteOn, Key: 64},
		{Position: 0.75, Kind: NoteOff, Key: 64},
	}
	if len(events) != len(want) {
		t.Fatalf("len = %d, want %d: %v", len(events), len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestParseParallelVoicesAreSorted(t *testing.T) {
	events, err := Parse("cdefgab;rrrrcde")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 20 {
		t.Fatalf("len = %d, want 20", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Position < events[i-1].Position {
			t.Fatalf("events not sorted at %d: %v after %v", i, events[i], events[i-1])
		}
	}
	if d := Duration(events); d != 1.75 {
		t.Fatalf("Duration() = %v, want 1.75", d)
	}
}

func TestParseKeepsOffBeforeOnAtSamePosition(t *testing.T) {
	events, err := Parse("cc")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	// the first c ends where the second begins
	if events[1].Kind != NoteOff || events[2].Kind != NoteOn || events[1].Position != events[2].Position {
		t.Fatalf("unexpected order: %v", events)
	}
}

func TestParseTempo(t *testing.T) {
	events, err := Parse("a", WithTempo(60))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if events[1].Position != 0.5 {
		t.Fatalf("note off at %v, want 0.5", events[1].Position)
	}

	events, err = Parse("a", WithTempo(-3))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if events[1].Position != NoteLength(DefaultTempo) {
		t.Fatalf("note off at %v, want default length", events[1].Position)
	}
}

func TestParseUnknownToken(t *testing.T) {
	tests := []struct {
		src    string
		char   rune
		offset int
	}{
		{"cdx", 'x', 2},
		{"C", 'C', 0},
		{"a b", ' ', 1},
		{"ab;é", 'é', 3},
	}
	for _, tt := range tests {
		events, err := Parse(tt.src)
		if events != nil {
			t.Fatalf("Parse(%q) returned partial events %v", tt.src, events)
		}
		var ute *UnknownTokenError
		if !errors.As(err, &ute) {
			t.Fatalf("Parse(%q) error = %v, want *UnknownTokenError", tt.src, err)
		}
		if ute.Char != tt.char || ute.Offset != tt.offset {
			t.Fatalf("Parse(%q) error = %+v, want %q at %d", tt.src, ute, tt.char, tt.offset)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	events, err := Parse("")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 0 || Duration(events) != 0 {
		t.Fatalf("events = %v, want none", events)
	}
}
