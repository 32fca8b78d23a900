// Package midi plays a synth from a MIDI keyboard through portmidi.
package midi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/rakyll/portmidi"

	"github.com/whyrusleeping/mmlsynth/synth"
)

const (
	statusNoteOff = 0x80
	statusNoteOn  = 0x90
	statusControl = 0xb0
)

// Target receives notes. *synth.Synth satisfies it.
type Target interface {
	NoteOn(synth.Key)
	NoteOff(synth.Key)
}

// Setter receives a mapped knob value.
type Setter func(float64)

type knobBind struct {
	mapf func(int64) float64
	sf   Setter
}

func (kb *knobBind) Update(val int64) {
	kb.sf(kb.mapf(val))
}

// Controller forwards MIDI notes to a Target. Every call into the target and
// into knob setters happens with the lock held, so the synth may be played by
// the speaker at the same time.
type Controller struct {
	target Target
	lock   sync.Locker
	log    *log.Logger

	stream *portmidi.Stream

	knobsSeen map[int64]int64
	knobBinds map[int64]*knobBind
}

type Option func(*Controller)

// WithLock sets the lock held around target and knob updates.
func WithLock(l sync.Locker) Option {
	return func(c *Controller) {
		if l != nil {
			c.lock = l
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a controller that is not attached to a device. Events can be
// fed to it with Handle.
func New(target Target, opts ...Option) *Controller {
	c := &Controller{
		target:    target,
		lock:      &sync.Mutex{},
		log:       log.New(io.Discard, "", 0),
		knobsSeen: make(map[int64]int64),
		knobBinds: make(map[int64]*knobBind),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Open attaches a controller to input device id. portmidi must have been
// initialized by the caller.
func Open(id portmidi.DeviceID, target Target, opts ...Option) (*Controller, error) {
	in, err := portmidi.NewInputStream(id, 1024)
	if err != nil {
		return nil, fmt.Errorf("opening midi input %d: %w", id, err)
	}
	c := New(target, opts...)
	c.stream = in
	return c, nil
}

func (c *Controller) Close() error {
	if c.stream == nil {
		return nil
	}
	return c.stream.Close()
}

// BindKnob routes control change knobid to s, mapping the raw 0-127 value
// through rangeMapFunc first.
func (c *Controller) BindKnob(knobid int64, s Setter, rangeMapFunc func(int64) float64) {
	if s == nil {
		c.log.Println("nil setter passed to bind knob:", knobid)
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.knobBinds[knobid] = &knobBind{
		mapf: rangeMapFunc,
		sf:   s,
	}
}

// LastKnobValue returns the latest raw value seen for a control.
func (c *Controller) LastKnobValue(knobid int64) (int64, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	v, ok := c.knobsSeen[knobid]
	return v, ok
}

// Handle applies one MIDI message. The channel nibble is ignored, and a note
// on with zero velocity counts as a note off.
func (c *Controller) Handle(event portmidi.Event) {
	status := event.Status & 0xf0

	c.lock.Lock()
	defer c.lock.Unlock()

	switch {
	case status == statusNoteOn && event.Data2 > 0:
		c.target.NoteOn(synth.Key(event.Data1))
	case status == statusNoteOff, status == statusNoteOn:
		c.target.NoteOff(synth.Key(event.Data1))
	case status == statusControl:
		c.knobsSeen[event.Data1] = event.Data2
		if kb, ok := c.knobBinds[event.Data1]; ok {
			kb.Update(event.Data2)
		}
	default:
		b, err := json.Marshal(event)
		if err != nil {
			c.log.Println("unhandled midi event:", err)
			return
		}
		c.log.Println("unhandled midi event:", string(b))
	}
}

// Run polls the device until ctx is done or reading fails.
func (c *Controller) Run(ctx context.Context) error {
	if c.stream == nil {
		return fmt.Errorf("controller has no input stream")
	}

	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		events, err := c.stream.Read(1024)
		if err != nil {
			return fmt.Errorf("reading midi input: %w", err)
		}
		for _, event := range events {
			c.Handle(event)
		}
	}
}
