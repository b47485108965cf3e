package control

import (
	"math"

	"plasma-ng/internal/knob"
)

// Key labels for the arrow keys as reported by the keyboard source.
const (
	KeyLeft  = "←"
	KeyRight = "→"
	KeyUp    = "↑"
	KeyDown  = "↓"
	KeySpace = " "
)

// FMFrequencyMax bounds the FM frequency knob.
const FMFrequencyMax = 20.0

// KnobBinding pairs a knob with the keys that move it. Current, if set,
// reads the live parameter the knob controls.
type KnobBinding struct {
	Knob    *knob.Knob
	Dec     string
	Inc     string
	Current func() float64
}

// Sync pulls the knob back to the live parameter value, which OSC or MIDI
// may have changed since the last key press.
func (kb KnobBinding) Sync() {
	if kb.Current != nil {
		kb.Knob.Sync(kb.Current())
	}
}

func (kb KnobBinding) step(op Operation) Operation {
	return func(args ...float64) error {
		kb.Sync()
		return op(args...)
	}
}

// Knobs builds the keyboard knob set for the channel, seeded from the
// current component settings.
func (c *Channel) Knobs() ([]KnobBinding, error) {
	inf := math.Inf(1)
	specs := []struct {
		name     string
		dec, inc string
		min, max float64
		current  func() float64
		step     knob.Step
		set      knob.Setter
	}{
		{"Interrupter frequency (Hz)", KeyLeft, KeyRight, 0, inf, c.intr.Frequency, knob.Proportional(knob.DefaultFloor), c.intr.SetFrequency},
		{"PWM frequency (Hz)", KeyDown, KeyUp, 0, inf, c.mod.Center, knob.Proportional(knob.DefaultFloor), c.SetCenterFrequency},
		{"Interrupter duty cycle", "{", "}", 0, 1, c.intr.DutyCycle, knob.FixedTicks(100), c.intr.SetDutyCycle},
		{"PWM duty cycle", "<", ">", 0, 1, c.pwm.DutyCycle, knob.FixedTicks(100), c.SetDutyCycle},
		{"PWM FM frequency (Hz)", "_", "+", 0, FMFrequencyMax, c.mod.Frequency, knob.FixedTicks(200), c.mod.SetFrequency},
		{"PWM FM spread (Hz)", "(", ")", 0, inf, c.mod.Amplitude, knob.Proportional(knob.DefaultFloor), c.SetFMSpread},
	}
	out := make([]KnobBinding, 0, len(specs))
	for _, s := range specs {
		k, err := knob.New(s.name, s.min, s.max, math.Min(s.current(), s.max), s.step, s.set)
		if err != nil {
			return nil, err
		}
		out = append(out, KnobBinding{Knob: k, Dec: s.dec, Inc: s.inc, Current: s.current})
	}
	return out, nil
}

// BindKnobs binds each knob's decrement and increment keys.
func BindKnobs(b *Builder, knobs []KnobBinding) error {
	for _, kb := range knobs {
		if err := b.Bind(kb.Dec, kb.step(Decrement(kb.Knob))); err != nil {
			return err
		}
		if err := b.Bind(kb.Inc, kb.step(Increment(kb.Knob))); err != nil {
			return err
		}
	}
	return nil
}

// BindKeys binds the channel's single-key toggles: space for the output,
// m for FM and i for the interrupter.
func (c *Channel) BindKeys(b *Builder) error {
	for key, op := range map[string]Operation{
		KeySpace: Action(c.ToggleOutput),
		"m":      Action(c.ToggleFM),
		"i":      Action(c.ToggleInterrupter),
	} {
		if err := b.Bind(key, op); err != nil {
			return err
		}
	}
	return nil
}
