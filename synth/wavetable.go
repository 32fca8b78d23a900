package synth

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
)

const DefaultTableSize = 2048

// Wavetable is one cycle of a waveform sampled at fixed points and read back
// with linear interpolation. It ignores frequency.
type Wavetable struct {
	table []float64
}

// NewWavetable samples one cycle of w at size points, calling it with the
// reference frequency of A4.
func NewWavetable(w Waveform, size int) (*Wavetable, error) {
	if size < 2 {
		return nil, fmt.Errorf("wavetable size must be >= 2: %d", size)
	}
	t := make([]float64, size)
	freq := KeyToFreq(A4)
	for i := range t {
		t[i] = w.Sample(float64(i)/float64(size), freq)
	}
	return &Wavetable{table: t}, nil
}

func (wt *Wavetable) Len() int { return len(wt.table) }

func (wt *Wavetable) Sample(phase, _ float64) float64 {
	_, frac := math.Modf(phase)
	if frac < 0 {
		frac++
	}
	pos := frac * float64(len(wt.table))
	i := int(pos)
	if i >= len(wt.table) {
		i = 0
	}
	next := i + 1
	if next == len(wt.table) {
		next = 0
	}
	t := pos - float64(i)
	return wt.table[i]*(1-t) + wt.table[next]*t
}

// LuaWavetable runs a Lua chunk that defines a global function
// wave(phase, freq) and tabulates one cycle of it. The Lua state is closed
// before returning, so the result is safe to use from the audio callback.
func LuaWavetable(src string, size int) (*Wavetable, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("loading wave script: %w", err)
	}
	fn := L.GetGlobal("wave")
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("wave script must define function wave(phase, freq), got %s", fn.Type())
	}

	var callErr error
	w := WaveformFunc(func(phase, freq float64) float64 {
		if callErr != nil {
			return 0
		}
		if err := L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, lua.LNumber(phase), lua.LNumber(freq)); err != nil {
			callErr = err
			return 0
		}
		ret := L.Get(-1)
		L.Pop(1)
		n, ok := ret.(lua.LNumber)
		if !ok {
			callErr = fmt.Errorf("wave returned %s, want number", ret.Type())
			return 0
		}
		return float64(n)
	})

	wt, err := NewWavetable(w, size)
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return nil, fmt.Errorf("evaluating wave script: %w", callErr)
	}
	return wt, nil
}
