package midi

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/whyrusleeping/mmlsynth/mml"
	"github.com/whyrusleeping/mmlsynth/synth"
)

const (
	metaEvent   = 0xff
	metaTempo   = 0x51
	sysexStart  = 0xf0
	sysexEscape = 0xf7

	defaultTempo = 500000 // microseconds per quarter, 120 BPM
)

var errTruncated = errors.New("unexpected end of data")

// ReadFile loads a Standard MIDI File as a timeline.
func ReadFile(path string) ([]mml.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	events, err := ReadSMF(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

type smfNote struct {
	tick uint64
	kind mml.Kind
	key  synth.Key
	drop bool
}

type tempoChange struct {
	tick uint64
	us   uint32
}

// ReadSMF decodes a format 0 or 1 Standard MIDI File into note events sorted
// by position. Channels are merged, tempo changes from any track apply to
// all of them, and everything except notes and tempo is skipped. At equal
// ticks note offs come before note ons, so a key released on one track and
// struck on another keeps sounding. Notes that end on the tick they start
// are dropped.
func ReadSMF(r io.Reader) ([]mml.Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}

	id, body, rest, err := nextChunk(data)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if id != "MThd" || len(body) < 6 {
		return nil, fmt.Errorf("not a midi file: header %q", id)
	}
	format := binary.BigEndian.Uint16(body[0:2])
	ntracks := int(binary.BigEndian.Uint16(body[2:4]))
	division := binary.BigEndian.Uint16(body[4:6])
	if format > 1 {
		return nil, fmt.Errorf("unsupported midi format %d", format)
	}
	if division&0x8000 != 0 || division == 0 {
		return nil, fmt.Errorf("unsupported time division 0x%04x", division)
	}

	var notes []smfNote
	var tempos []tempoChange
	for track := 0; track < ntracks; {
		if len(rest) == 0 {
			return nil, fmt.Errorf("expected %d tracks, found %d", ntracks, track)
		}
		id, body, rest, err = nextChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", track, err)
		}
		if id != "MTrk" {
			// unknown chunk types are skipped
			continue
		}
		if err := decodeTrack(body, &notes, &tempos); err != nil {
			return nil, fmt.Errorf("track %d: %w", track, err)
		}
		track++
	}

	notes = slices.DeleteFunc(notes, func(n smfNote) bool { return n.drop })
	slices.SortStableFunc(notes, func(a, b smfNote) int {
		return cmp.Or(
			cmp.Compare(a.tick, b.tick),
			cmp.Compare(b.kind, a.kind),
		)
	})
	slices.SortStableFunc(tempos, func(a, b tempoChange) int {
		return cmp.Compare(a.tick, b.tick)
	})

	events := make([]mml.Event, len(notes))
	for i, n := range notes {
		events[i] = mml.Event{
			Position: tickSeconds(n.tick, tempos, float64(division)),
			Kind:     n.kind,
			Key:      n.key,
		}
	}
	return events, nil
}

func nextChunk(data []byte) (id string, body, rest []byte, err error) {
	if len(data) < 8 {
		return "", nil, nil, errTruncated
	}
	n := binary.BigEndian.Uint32(data[4:8])
	if uint64(n) > uint64(len(data)-8) {
		return "", nil, nil, fmt.Errorf("chunk %q length %d: %w", data[0:4], n, errTruncated)
	}
	return string(data[0:4]), data[8 : 8+n], data[8+n:], nil
}

func readVarLen(data []byte, pos int) (uint32, int, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		if pos >= len(data) {
			return 0, pos, errTruncated
		}
		b := data[pos]
		pos++
		v = v<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return v, pos, nil
		}
	}
	return 0, pos, fmt.Errorf("variable length quantity longer than 4 bytes at %d", pos)
}

func decodeTrack(data []byte, notes *[]smfNote, tempos *[]tempoChange) error {
	var tick uint64
	var running byte
	// index into notes of the latest note on per key in this track
	lastOn := make(map[synth.Key]int)
	pos := 0
	for pos < len(data) {
		delta, next, err := readVarLen(data, pos)
		if err != nil {
			return fmt.Errorf("delta time at %d: %w", pos, err)
		}
		pos = next
		tick += uint64(delta)

		if pos >= len(data) {
			return errTruncated
		}
		status := data[pos]
		if status&0x80 != 0 {
			pos++
		} else {
			if running == 0 {
				return fmt.Errorf("running status without a previous status at %d", pos)
			}
			status = running
		}

		switch {
		case status == metaEvent:
			if pos >= len(data) {
				return errTruncated
			}
			typ := data[pos]
			n, next, err := readVarLen(data, pos+1)
			if err != nil {
				return fmt.Errorf("meta event length at %d: %w", pos, err)
			}
			if uint64(n) > uint64(len(data)-next) {
				return fmt.Errorf("meta event at %d: %w", pos, errTruncated)
			}
			payload := data[next : next+int(n)]
			pos = next + int(n)
			if typ == metaTempo && len(payload) == 3 {
				us := uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
				*tempos = append(*tempos, tempoChange{tick: tick, us: us})
			}
		case status == sysexStart || status == sysexEscape:
			n, next, err := readVarLen(data, pos)
			if err != nil {
				return fmt.Errorf("sysex length at %d: %w", pos, err)
			}
			if uint64(n) > uint64(len(data)-next) {
				return fmt.Errorf("sysex at %d: %w", pos, errTruncated)
			}
			pos = next + int(n)
			running = 0
		case status >= 0x80 && status < 0xf0:
			running = status
			nparams := 2
			if kind := status & 0xf0; kind == 0xc0 || kind == 0xd0 {
				nparams = 1
			}
			if pos+nparams > len(data) {
				return fmt.Errorf("channel message at %d: %w", pos, errTruncated)
			}
			key, vel := data[pos], byte(0)
			if nparams == 2 {
				vel = data[pos+1]
			}
			pos += nparams

			kind := mml.NoteOff
			switch status & 0xf0 {
			case statusNoteOn:
				if vel > 0 {
					kind = mml.NoteOn
				}
			case statusNoteOff:
			default:
				continue
			}

			k := synth.Key(key)
			if kind == mml.NoteOn {
				lastOn[k] = len(*notes)
				*notes = append(*notes, smfNote{tick: tick, kind: kind, key: k})
				continue
			}
			if i, ok := lastOn[k]; ok && (*notes)[i].tick == tick {
				(*notes)[i].drop = true
				delete(lastOn, k)
				continue
			}
			*notes = append(*notes, smfNote{tick: tick, kind: kind, key: k})
		default:
			return fmt.Errorf("unexpected status 0x%02x at %d", status, pos-1)
		}
	}
	return nil
}

// tickSeconds converts an absolute tick to seconds under a sorted tempo map.
func tickSeconds(tick uint64, tempos []tempoChange, division float64) float64 {
	var sec float64
	var last uint64
	us := float64(defaultTempo)
	for _, tc := range tempos {
		if tc.tick >= tick {
			break
		}
		sec += float64(tc.tick-last) * us / 1e6 / division
		last = tc.tick
		us = float64(tc.us)
	}
	return sec + float64(tick-last)*us/1e6/division
}
