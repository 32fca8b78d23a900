package mml

import (
	"testing"

	"github.com/whyrusleeping/mmlsynth/synth"
)

func TestArpeggio(t *testing.T) {
	events, err := Arpeggio([]synth.Key{60, -1, 67}, 4, WithTempo(60))
	if err != nil {
		t.Fatalf("Arpeggio() error = %v", err)
	}

	want := []Event{
		{Position: 0, Kind: NoteOn, Key: 60},
		{Position: 0.5, Kind: NoteOff, Key: 60},
		{Position: 1, Kind: NoteOn, Key: 67},
		{Position: 1.5, Kind: NoteOff, Key: 67},
		{Position: 1.5, Kind: NoteOn, Key: 60},
		{Position: 2, Kind: NoteOff, Key: 60},
	}
	if len(events) != len(want) {
		t.Fatalf("len(events) = %d, want %d: %v", len(events), len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestArpeggioMatchesParse(t *testing.T) {
	arp, err := Arpeggio([]synth.Key{60, 64, 67}, 6)
	if err != nil {
		t.Fatalf("Arpeggio() error = %v", err)
	}
	parsed, err := Parse("cegceg")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(arp) != len(parsed) {
		t.Fatalf("len = %d, want %d", len(arp), len(parsed))
	}
	for i := range parsed {
		if arp[i] != parsed[i] {
			t.Fatalf("event %d = %v, want %v", i, arp[i], parsed[i])
		}
	}
}

func TestArpeggioErrors(t *testing.T) {
	if _, err := Arpeggio(nil, 4); err == nil {
		t.Fatal("expected error for no keys")
	}
	if _, err := Arpeggio([]synth.Key{60}, -1); err == nil {
		t.Fatal("expected error for negative steps")
	}
	events, err := Arpeggio([]synth.Key{60}, 0)
	if err != nil || len(events) != 0 {
		t.Fatalf("Arpeggio(steps=0) = %v, %v", events, err)
	}
}
