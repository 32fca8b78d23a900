package mml

import (
	"fmt"

	"github.com/whyrusleeping/mmlsynth/synth"
)

type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "on"
	case NoteOff:
		return "off"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Target receives note events. *synth.Synth satisfies it.
type Target interface {
	NoteOn(synth.Key)
	NoteOff(synth.Key)
}

// Event is a note change at Position seconds from the start.
type Event struct {
	Position float64
	Kind     Kind
	Key      synth.Key
}

func (e Event) String() string {
	return fmt.Sprintf("%.3fs %s %d", e.Position, e.Kind, e.Key)
}

func (e Event) Apply(t Target) {
	switch e.Kind {
	case NoteOn:
		t.NoteOn(e.Key)
	case NoteOff:
		t.NoteOff(e.Key)
	}
}

// FiredAt reports whether the event is due at position.
func (e Event) FiredAt(position float64) bool {
	return position >= e.Position
}

// Queue hands a sorted timeline to a Target as playback advances.
type Queue struct {
	events []Event
	next   int
}

// NewQueue wraps events, which must already be sorted by position.
func NewQueue(events []Event) *Queue {
	return &Queue{events: events}
}

// Drain applies every pending event whose position is at or before position
// and returns how many were applied.
func (q *Queue) Drain(position float64, t Target) int {
	n := 0
	for q.next < len(q.events) && q.events[q.next].FiredAt(position) {
		q.events[q.next].Apply(t)
		q.next++
		n++
	}
	return n
}

func (q *Queue) Done() bool {
	return q.next >= len(q.events)
}

func (q *Queue) Remaining() int {
	return len(q.events) - q.next
}

// Rewind restarts the timeline from its first event.
func (q *Queue) Rewind() {
	q.next = 0
}
