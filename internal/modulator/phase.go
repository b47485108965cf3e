package modulator

import "math"

const twoPi = 2 * math.Pi

// phaseTracker keeps a waveform continuous while its frequency changes.
//
// The phase at time t is 2πt/f + offset. When f changes, offset absorbs
// the difference so the phase at that instant is unchanged.
type phaseTracker struct {
	offset float64
	prev   float64
}

// advance returns the phase at t seconds for frequency f (> 0).
func (p *phaseTracker) advance(t, f float64) float64 {
	if p.prev > 0 {
		p.offset = wrap(p.offset + twoPi*t*(1/p.prev-1/f))
	} else {
		// Coming from a flat output: start the wave at phase 0.
		p.offset = wrap(-twoPi * t / f)
	}
	p.prev = f
	return wrap(twoPi*t/f + p.offset)
}

// flat records that the output is constant, so the next advance restarts
// the wave at phase 0.
func (p *phaseTracker) flat() { p.prev = 0 }

func wrap(x float64) float64 {
	x = math.Mod(x, twoPi)
	if x < 0 {
		x += twoPi
	}
	if x >= twoPi {
		x = 0
	}
	return x
}
