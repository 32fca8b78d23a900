package player

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep"
	beepfx "github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

// Init opens the default output device. The buffer holds a tenth of a
// second, which is plenty for offline timelines and still playable live.
func Init(sr beep.SampleRate) error {
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("initializing speaker: %w", err)
	}
	return nil
}

type speakerLocker struct{}

func (speakerLocker) Lock()   { speaker.Lock() }
func (speakerLocker) Unlock() { speaker.Unlock() }

// SpeakerLock holds off the speaker while it is held. Take it before touching
// a synth that is currently being played from another goroutine.
var SpeakerLock sync.Locker = speakerLocker{}

// Play starts st on the speaker opened by Init and returns immediately. It is
// mixed with anything already playing.
func Play(st beep.Streamer) {
	speaker.Play(st)
}

// Stop silences everything playing on the speaker.
func Stop() {
	speaker.Clear()
}

// PlayAndWait plays st on the speaker opened by Init and blocks until it ends
// or ctx is cancelled. Cancelling clears everything queued on the speaker.
func PlayAndWait(ctx context.Context, st beep.Streamer) error {
	done := make(chan struct{})
	speaker.Play(beep.Seq(st, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Gain scales st by g. The synth output is not normalized, so a chord of
// detuned voices usually needs g well below 1.
func Gain(st beep.Streamer, g float64) beep.Streamer {
	return &beepfx.Gain{
		Streamer: st,
		Gain:     g - 1,
	}
}

// WriteWAV encodes st as 16 bit mono. Samples outside [-1, 1] are clipped by
// the encoder.
func WriteWAV(w io.WriteSeeker, st beep.Streamer, sr beep.SampleRate) error {
	if err := wav.Encode(w, st, beep.Format{
		SampleRate:  sr,
		NumChannels: 1,
		Precision:   2,
	}); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	return nil
}
