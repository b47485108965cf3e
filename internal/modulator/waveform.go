package modulator

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Waveform maps a phase in [0, 2π) to a value in [-1, 1]. Every built-in
// waveform is 0 at phase 0.
type Waveform func(phase float64) float64

func Sine(phase float64) float64 { return math.Sin(phase) }

func Triangle(phase float64) float64 {
	v := 2 / math.Pi * math.Asin(math.Sin(phase))
	return math.Max(-1, math.Min(1, v))
}

func Square(phase float64) float64 {
	switch {
	case phase == 0 || phase == math.Pi:
		return 0
	case phase < math.Pi:
		return 1
	default:
		return -1
	}
}

// Saw rises from 0 to 1 over the first half period, then from -1 back to 0.
func Saw(phase float64) float64 {
	if phase < math.Pi {
		return phase / math.Pi
	}
	return phase/math.Pi - 2
}

var waveforms = map[string]Waveform{
	"sine":     Sine,
	"triangle": Triangle,
	"square":   Square,
	"saw":      Saw,
}

// ParseWaveform looks a waveform up by name. The empty name is sine.
func ParseWaveform(name string) (Waveform, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Sine, nil
	}
	if w, ok := waveforms[key]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("unknown waveform %q (want one of %s)", name, strings.Join(WaveformNames(), ", "))
}

func WaveformNames() []string {
	names := make([]string, 0, len(waveforms))
	for n := range waveforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
