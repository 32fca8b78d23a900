// Package player connects a synth to beep: Source pulls one sample at a time
// while feeding due note events to the synth, and the helpers here send the
// result to the speaker or a WAV file.
//
// A timeline source ends when its last note has died out. Effects such as a
// delay keep ringing after that, so a source can be given a tail with
// WithTail: it then emits silence for that long before ending, which lets the
// echoes play out. WithMaxDuration still cuts everything off.
package player

import (
	"time"

	"github.com/gopxl/beep"

	"github.com/whyrusleeping/mmlsynth/mml"
	"github.com/whyrusleeping/mmlsynth/synth"
)

// Source is a beep.Streamer that renders a Synth. When it has a queue it
// applies every event due at a sample's position before rendering that
// sample, and it ends once the queue is empty, every note has died out and
// the tail has elapsed.
type Source struct {
	synth    *synth.Synth
	queue    *mml.Queue
	rate     float64
	position int
	limit    int
	tail     int
	end      int
}

type Option func(*Source)

// WithQueue drives the synth from a timeline.
func WithQueue(q *mml.Queue) Option {
	return func(s *Source) {
		s.queue = q
	}
}

// WithMaxDuration stops the source after d even if notes are still sounding.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.limit = int(d.Seconds() * s.rate)
		}
	}
}

// WithTail keeps a timeline source running for d of silence after the last
// note has died out.
func WithTail(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.tail = int(d.Seconds() * s.rate)
		}
	}
}

func NewSource(sy *synth.Synth, opts ...Option) *Source {
	s := &Source{
		synth: sy,
		rate:  sy.SampleRate(),
		end:   -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SampleRate returns the synth rate as a beep.SampleRate.
func (s *Source) SampleRate() beep.SampleRate {
	return beep.SampleRate(int(s.rate))
}

// Position returns the number of samples rendered so far.
func (s *Source) Position() int { return s.position }

func (s *Source) finished() bool {
	if s.limit > 0 && s.position >= s.limit {
		return true
	}
	if s.queue == nil || !s.queue.Done() || !s.synth.Silent() {
		return false
	}
	// no events are left, so the synth stays silent from here on
	if s.end < 0 {
		s.end = s.position + s.tail
	}
	return s.position >= s.end
}

// Next renders a single sample. ok is false once the source has ended.
func (s *Source) Next() (float64, bool) {
	if s.queue != nil {
		s.queue.Drain(float64(s.position)/s.rate, s.synth)
	}
	if s.finished() {
		return 0, false
	}
	v := s.synth.Sample()
	s.position++
	return v, true
}

func (s *Source) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		v, ok := s.Next()
		if !ok {
			return i, i > 0
		}
		samples[i][0] = v
		samples[i][1] = v
	}
	return len(samples), true
}

func (s *Source) Err() error {
	return nil
}

// Render pulls up to n samples from the left channel of st, stopping early if
// the stream ends.
func Render(st beep.Streamer, n int) []float64 {
	out := make([]float64, 0, n)
	buf := make([][2]float64, 512)
	for len(out) < n {
		want := n - len(out)
		if want > len(buf) {
			want = len(buf)
		}
		got, ok := st.Stream(buf[:want])
		for i := range buf[:got] {
			out = append(out, buf[i][0])
		}
		if !ok {
			break
		}
	}
	return out
}
