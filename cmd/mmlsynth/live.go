package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/rakyll/portmidi"

	"github.com/whyrusleeping/mmlsynth/analysis"
	"github.com/whyrusleeping/mmlsynth/midi"
	"github.com/whyrusleeping/mmlsynth/player"
)

func cmdLive(args []string) error {
	var o options
	fs := flag.NewFlagSet("live", flag.ContinueOnError)
	o.register(fs)
	device := fs.Int("device", -1, "portmidi input device id (default: system default)")
	list := fs.Bool("list", false, "list MIDI devices and exit")
	var knobs knobFlags
	fs.Var(&knobs, "knob", "bind a control change to an effect parameter, e.g. 74=lowpass.cutoff (repeatable)")
	watch := fs.Duration("watch", 0, "log the loudest pitch at this interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := portmidi.Initialize(); err != nil {
		return fmt.Errorf("initializing portmidi: %w", err)
	}
	defer portmidi.Terminate()

	if *list {
		listDevices(os.Stdout)
		return nil
	}

	p, err := o.loadPatch()
	if err != nil {
		return err
	}
	sy, err := p.Build()
	if err != nil {
		return err
	}
	chain, err := p.BuildEffects()
	if err != nil {
		return err
	}

	src := player.NewSource(sy, player.WithMaxDuration(o.maxDur))
	st := player.Gain(chain.Apply(src), p.Gain)

	var rec *analysis.Recorder
	if *watch > 0 {
		rec = analysis.NewRecorder(st, 1<<13)
		st = rec
	}

	id := portmidi.DefaultInputDeviceID()
	if *device >= 0 {
		id = portmidi.DeviceID(*device)
	}
	ctrl, err := midi.Open(id, sy, midi.WithLock(player.SpeakerLock), midi.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	for _, kb := range knobs {
		set, err := chain.Setter(kb.target)
		if err != nil {
			return fmt.Errorf("live: knob %d: %w", kb.cc, err)
		}
		ctrl.BindKnob(kb.cc, set, knobRange(kb.target))
	}

	if err := player.Init(src.SampleRate()); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- ctrl.Run(ctx)
		cancel()
	}()
	if rec != nil {
		go watchPitch(ctx, rec, src.SampleRate(), *watch)
	}

	logger.Printf("listening on midi device %d", id)
	err = player.PlayAndWait(ctx, st)
	cancel()
	if rerr := interrupted(<-errc); rerr != nil {
		return rerr
	}
	return interrupted(err)
}

type knobBinding struct {
	cc     int64
	target string
}

// knobFlags collects -knob cc=effect.param flags.
type knobFlags []knobBinding

func (k *knobFlags) String() string {
	parts := make([]string, len(*k))
	for i, kb := range *k {
		parts[i] = fmt.Sprintf("%d=%s", kb.cc, kb.target)
	}
	return strings.Join(parts, ",")
}

func (k *knobFlags) Set(v string) error {
	cc, target, ok := strings.Cut(v, "=")
	if !ok || target == "" {
		return fmt.Errorf("want cc=effect.param, got %q", v)
	}
	n, err := strconv.ParseInt(cc, 10, 64)
	if err != nil || n < 0 || n > 127 {
		return fmt.Errorf("bad control change number %q", cc)
	}
	*k = append(*k, knobBinding{cc: n, target: target})
	return nil
}

// knobRange maps a raw 0-127 control value onto a useful range for param.
func knobRange(target string) func(int64) float64 {
	_, param, _ := strings.Cut(target, ".")
	switch param {
	case "cutoff":
		return func(v int64) float64 { return math.Pow(float64(v), 1.5) }
	case "ratio":
		return func(v int64) float64 { return 1 + float64(v)/32 }
	default:
		// decay and threshold live in [0, 1)
		return func(v int64) float64 { return float64(v) / 128 }
	}
}

func listDevices(w io.Writer) {
	for i := 0; i < portmidi.CountDevices(); i++ {
		info := portmidi.Info(portmidi.DeviceID(i))
		if info == nil {
			continue
		}
		dir := "out"
		if info.IsInputAvailable {
			dir = "in"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i, dir, info.Interface, info.Name)
	}
}

// watchPitch logs the strongest frequency in the most recent output.
func watchPitch(ctx context.Context, rec *analysis.Recorder, sr beep.SampleRate, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()

	buf := make([]float64, 1<<13)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		n := rec.Snapshot(buf)
		if n < len(buf) || rec.Recorded() < len(buf) {
			continue
		}
		spec, err := analysis.NewSpectrum(buf, float64(sr))
		if err != nil {
			logger.Println("watch:", err)
			return
		}
		peak := spec.PeakFrequency()
		if peak.Magnitude < 1e-4 {
			continue
		}
		logger.Printf("pitch %s (%s)", peak, keyName(peak.Freq))
	}
}
