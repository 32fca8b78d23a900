package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/gopxl/beep"

	"github.com/whyrusleeping/mmlsynth/mml"
	"github.com/whyrusleeping/mmlsynth/patch"
	"github.com/whyrusleeping/mmlsynth/player"
	"github.com/whyrusleeping/mmlsynth/synth"
)

var replCommands = []prompt.Suggest{
	{Text: ":tempo", Description: "set the tempo in BPM"},
	{Text: ":arp", Description: "arpeggiate keys: :arp <steps> <key>..."},
	{Text: ":stop", Description: "silence everything that is playing"},
	{Text: ":patch", Description: "load a patch file"},
	{Text: "exit", Description: "leave"},
}

// repl plays every line it is given as a separate score, mixed on top of
// whatever is still sounding.
type repl struct {
	patch  *patch.Patch
	out    io.Writer
	maxDur time.Duration

	play func(beep.Streamer)
	stop func()
}

func (r *repl) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" || line == "exit" {
		return
	}
	if strings.HasPrefix(line, ":") {
		r.command(line)
		return
	}

	st, _, err := buildScore(r.patch, line, r.maxDur)
	if err != nil {
		fmt.Fprintln(r.out, "ERROR:", err)
		return
	}
	r.play(st)
}

func (r *repl) command(line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":stop":
		r.stop()
	case ":arp":
		if err := r.arp(fields[1:]); err != nil {
			fmt.Fprintln(r.out, "ERROR:", err)
		}
	case ":tempo":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: :tempo <bpm>")
			return
		}
		bpm, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || bpm <= 0 {
			fmt.Fprintf(r.out, "ERROR: bad tempo %q\n", fields[1])
			return
		}
		r.patch.Tempo = bpm
	case ":patch":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: :patch <file>")
			return
		}
		p, err := patch.Load(fields[1])
		if err != nil {
			fmt.Fprintln(r.out, "ERROR:", err)
			return
		}
		if p.SampleRate != r.patch.SampleRate {
			fmt.Fprintf(r.out, "ERROR: patch sample rate %d does not match the speaker (%d)\n", p.SampleRate, r.patch.SampleRate)
			return
		}
		r.patch = p
	default:
		fmt.Fprintf(r.out, "ERROR: unknown command %q\n", fields[0])
	}
}

func (r *repl) arp(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: :arp <steps> <key>...")
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad step count %q", args[0])
	}
	keys := make([]synth.Key, 0, len(args)-1)
	for _, a := range args[1:] {
		k, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("bad key %q", a)
		}
		keys = append(keys, synth.Key(k))
	}
	events, err := mml.Arpeggio(keys, steps, mml.WithTempo(r.patch.Tempo))
	if err != nil {
		return err
	}
	st, _, err := buildTimeline(r.patch, events, r.maxDur)
	if err != nil {
		return err
	}
	r.play(st)
	return nil
}

func (r *repl) complete(d prompt.Document) []prompt.Suggest {
	w := d.GetWordBeforeCursor()
	if !strings.HasPrefix(w, ":") && !strings.HasPrefix(w, "e") {
		return nil
	}
	return prompt.FilterHasPrefix(replCommands, w, true)
}

func cmdRepl(args []string) error {
	var o options
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := o.loadPatch()
	if err != nil {
		return err
	}
	if err := player.Init(beep.SampleRate(p.SampleRate)); err != nil {
		return err
	}

	r := &repl{
		patch:  p,
		out:    os.Stdout,
		maxDur: o.maxDur,
		play:   player.Play,
		stop:   player.Stop,
	}
	prompt.New(r.execute, r.complete,
		prompt.OptionPrefix("mml> "),
		prompt.OptionTitle("mmlsynth"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && strings.TrimSpace(in) == "exit"
		}),
	).Run()
	return nil
}
