package control

import (
	"fmt"

	"plasma-ng/internal/knob"
	"plasma-ng/internal/pwm"
)

// Action ignores its arguments.
func Action(fn func() error) Operation {
	return func(...float64) error { return fn() }
}

// Value passes the first argument to fn. A missing argument is rejected.
func Value(fn func(v float64) error) Operation {
	return func(args ...float64) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: missing value", pwm.ErrInvalidParameter)
		}
		return fn(args[0])
	}
}

// Toggle calls on for a non-zero first argument, and off otherwise,
// including when there is no argument.
func Toggle(on, off func() error) Operation {
	return func(args ...float64) error {
		if len(args) > 0 && args[0] != 0 {
			return on()
		}
		return off()
	}
}

func Increment(k *knob.Knob) Operation {
	return func(...float64) error {
		_, err := k.Increment()
		return err
	}
}

func Decrement(k *knob.Knob) Operation {
	return func(...float64) error {
		_, err := k.Decrement()
		return err
	}
}

// SetKnob moves k to the first argument.
func SetKnob(k *knob.Knob) Operation {
	return Value(k.Set)
}
