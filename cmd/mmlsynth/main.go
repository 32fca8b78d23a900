// Command mmlsynth plays MML scores and MIDI input through a patchable synth.
//
// Usage:
//
//	mmlsynth play [flags] <score>
//	mmlsynth render -o out.wav [flags] <score>
//	mmlsynth analyze [flags] <score>
//	mmlsynth live [flags]
//	mmlsynth repl [flags]
//
// A score is either a file name or the MML text itself, "-" reads stdin.
// Files ending in .mid are read as Standard MIDI Files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"

	"github.com/whyrusleeping/mmlsynth/midi"
	"github.com/whyrusleeping/mmlsynth/mml"
	"github.com/whyrusleeping/mmlsynth/patch"
	"github.com/whyrusleeping/mmlsynth/player"
)

var logger = log.New(os.Stderr, "mmlsynth: ", 0)

var commands = map[string]func(args []string) error{
	"play":    cmdPlay,
	"render":  cmdRender,
	"analyze": cmdAnalyze,
	"live":    cmdLive,
	"repl":    cmdRepl,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command, want one of play, render, analyze, live, repl")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(args[1:])
}

// common flags shared by every subcommand
type options struct {
	patchPath string
	tempo     float64
	maxDur    time.Duration
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.patchPath, "patch", "", "JSON patch file (default: built in FM voice)")
	fs.Float64Var(&o.tempo, "tempo", 0, "tempo in BPM, overrides the patch")
	fs.DurationVar(&o.maxDur, "max", 0, "stop after this long even if notes still sound")
}

func (o *options) loadPatch() (*patch.Patch, error) {
	p := patch.Default()
	if o.patchPath != "" {
		var err error
		p, err = patch.Load(o.patchPath)
		if err != nil {
			return nil, err
		}
	}
	if o.tempo > 0 {
		p.Tempo = o.tempo
	}
	return p, nil
}

// readScore resolves a score argument to MML text. Whitespace is dropped from
// files and stdin so scores can be split over lines.
func readScore(arg string) (string, error) {
	if arg == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading score from stdin: %w", err)
		}
		return stripSpace(string(b)), nil
	}
	if fi, err := os.Stat(arg); err == nil && !fi.IsDir() {
		b, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("reading score: %w", err)
		}
		return stripSpace(string(b)), nil
	}
	return arg, nil
}

// buildScore wires patch, timeline and effects into one stream.
func buildScore(p *patch.Patch, score string, maxDur time.Duration) (beep.Streamer, *player.Source, error) {
	events, err := mml.Parse(score, mml.WithTempo(p.Tempo))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing score: %w", err)
	}
	return buildTimeline(p, events, maxDur)
}

func isMIDIFile(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".mid", ".midi", ".smf":
		return true
	}
	return false
}

// buildArg builds the stream for a score argument, which may also name a
// Standard MIDI File. MIDI files carry their own tempo.
func buildArg(p *patch.Patch, arg string, maxDur time.Duration) (beep.Streamer, *player.Source, error) {
	if isMIDIFile(arg) {
		events, err := midi.ReadFile(arg)
		if err != nil {
			return nil, nil, err
		}
		return buildTimeline(p, events, maxDur)
	}
	score, err := readScore(arg)
	if err != nil {
		return nil, nil, err
	}
	return buildScore(p, score, maxDur)
}

func buildTimeline(p *patch.Patch, events []mml.Event, maxDur time.Duration) (beep.Streamer, *player.Source, error) {
	sy, err := p.Build()
	if err != nil {
		return nil, nil, err
	}
	chain, err := p.BuildEffects()
	if err != nil {
		return nil, nil, err
	}
	src := player.NewSource(sy,
		player.WithQueue(mml.NewQueue(events)),
		player.WithMaxDuration(maxDur),
		player.WithTail(chain.Tail()),
	)
	return player.Gain(chain.Apply(src), p.Gain), src, nil
}

func stripSpace(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// interrupted treats a cancelled playback, usually Ctrl-C, as a clean exit.
func interrupted(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func scoreArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected one score argument, got %d", fs.Name(), fs.NArg())
	}
	return fs.Arg(0), nil
}
