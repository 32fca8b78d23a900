package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gopxl/beep"

	"github.com/whyrusleeping/mmlsynth/analysis"
	"github.com/whyrusleeping/mmlsynth/patch"
	"github.com/whyrusleeping/mmlsynth/player"
	"github.com/whyrusleeping/mmlsynth/synth"
)

func cmdPlay(args []string) error {
	var o options
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	arg, err := scoreArg(fs)
	if err != nil {
		return err
	}
	p, err := o.loadPatch()
	if err != nil {
		return err
	}
	st, src, err := buildArg(p, arg, o.maxDur)
	if err != nil {
		return err
	}

	if err := player.Init(src.SampleRate()); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := interrupted(player.PlayAndWait(ctx, st)); err != nil {
		return err
	}
	logger.Printf("played %.2fs", src.SampleRate().D(src.Position()).Seconds())
	return nil
}

func cmdRender(args []string) error {
	var o options
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	o.register(fs)
	out := fs.String("o", "", "output WAV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("render: -o is required")
	}
	arg, err := scoreArg(fs)
	if err != nil {
		return err
	}
	p, err := o.loadPatch()
	if err != nil {
		return err
	}
	n, err := renderScore(p, arg, o.maxDur, *out)
	if err != nil {
		return err
	}
	logger.Printf("wrote %d samples to %s", n, *out)
	return nil
}

// renderScore writes the score to a WAV file and returns the number of
// samples the synth produced.
func renderScore(p *patch.Patch, arg string, maxDur time.Duration, path string) (int, error) {
	st, src, err := buildArg(p, arg, maxDur)
	if err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	if err := player.WriteWAV(f, st, src.SampleRate()); err != nil {
		return 0, err
	}
	return src.Position(), f.Close()
}

func cmdAnalyze(args []string) error {
	var o options
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	o.register(fs)
	size := fs.Int("samples", 1<<15, "number of samples to analyze")
	npeaks := fs.Int("peaks", 5, "number of spectral peaks to print")
	if err := fs.Parse(args); err != nil {
		return err
	}
	arg, err := scoreArg(fs)
	if err != nil {
		return err
	}
	p, err := o.loadPatch()
	if err != nil {
		return err
	}
	st, src, err := buildArg(p, arg, o.maxDur)
	if err != nil {
		return err
	}
	return analyze(os.Stdout, st, src.SampleRate(), *size, *npeaks)
}

func analyze(w io.Writer, st beep.Streamer, sr beep.SampleRate, size, npeaks int) error {
	samples := player.Render(st, size)
	spec, err := analysis.NewSpectrum(samples, float64(sr))
	if err != nil {
		return err
	}

	peak := spec.PeakFrequency()
	fmt.Fprintf(w, "samples: %d (%.3fs)\n", len(samples), sr.D(len(samples)).Seconds())
	fmt.Fprintf(w, "bin width: %.3f Hz\n", spec.BinWidth)
	fmt.Fprintf(w, "peak: %s (%s)\n", peak, keyName(peak.Freq))

	floor := peak.Magnitude / 100
	for i, pk := range spec.Peaks(npeaks, floor) {
		fmt.Fprintf(w, "%d: %s (%s)\n", i+1, pk, keyName(pk.Freq))
	}
	return nil
}

func keyName(freq float64) string {
	if freq <= 0 {
		return "-"
	}
	return synth.FreqToKey(freq).String()
}
