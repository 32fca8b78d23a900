package analysis

import (
	"sync"

	"github.com/gopxl/beep"
)

// Recorder passes a stream through unchanged and keeps the most recent
// samples of its left channel in a ring buffer, so another goroutine can take
// snapshots while the speaker is playing.
type Recorder struct {
	lk       sync.Mutex
	buf      []float64
	position int

	sub beep.Streamer
}

func NewRecorder(sub beep.Streamer, size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{
		buf: make([]float64, size),
		sub: sub,
	}
}

func (r *Recorder) Stream(samples [][2]float64) (int, bool) {
	n, ok := r.sub.Stream(samples)

	r.lk.Lock()
	defer r.lk.Unlock()

	for i := range samples[:n] {
		r.buf[r.position%len(r.buf)] = samples[i][0]
		r.position++
	}
	return n, ok
}

func (r *Recorder) Err() error {
	return r.sub.Err()
}

// Recorded returns how many samples passed through in total.
func (r *Recorder) Recorded() int {
	r.lk.Lock()
	defer r.lk.Unlock()
	return r.position
}

// Snapshot copies the newest samples, oldest first, into buf and returns how
// many were written.
func (r *Recorder) Snapshot(buf []float64) int {
	r.lk.Lock()
	defer r.lk.Unlock()

	lim := len(buf)
	if len(r.buf) < lim {
		lim = len(r.buf)
	}
	if r.position < lim {
		lim = r.position
	}

	start := r.position - lim
	for i := 0; i < lim; i++ {
		buf[i] = r.buf[(start+i)%len(r.buf)]
	}
	return lim
}
