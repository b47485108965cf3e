// Package knob implements bounded, steppable control parameters.
package knob

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrOutOfRange is returned when a value falls outside a knob's range.
var ErrOutOfRange = errors.New("value out of range")

// Setter pushes a knob's new value into the component it controls.
type Setter func(v float64) error

// Knob is a numeric parameter confined to [Min, Max].
//
// Every successful Increment, Decrement or Set calls the setter exactly once
// before the new value is committed; if the setter fails the knob keeps its
// old value.
type Knob struct {
	name string
	min  float64
	max  float64
	step Step
	set  Setter

	mu    sync.Mutex
	value float64
}

func New(name string, min, max, initial float64, step Step, set Setter) (*Knob, error) {
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return nil, fmt.Errorf("knob %q: %w: invalid range [%v, %v]", name, ErrOutOfRange, min, max)
	}
	if step == nil {
		return nil, fmt.Errorf("knob %q: missing step", name)
	}
	if set == nil {
		return nil, fmt.Errorf("knob %q: missing setter", name)
	}
	if err := step.check(min, max); err != nil {
		return nil, fmt.Errorf("knob %q: %w", name, err)
	}
	if !(initial >= min && initial <= max) {
		return nil, fmt.Errorf("knob %q: %w: initial value %v not in [%v, %v]", name, ErrOutOfRange, initial, min, max)
	}
	return &Knob{name: name, min: min, max: max, step: step, set: set, value: initial}, nil
}

func (k *Knob) Name() string { return k.name }
func (k *Knob) Min() float64 { return k.min }
func (k *Knob) Max() float64 { return k.max }

func (k *Knob) Value() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.value
}

// Increment moves the value up one step, stopping at Max.
func (k *Knob) Increment() (float64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.apply(k.step.up(k.value, k.min, k.max))
}

// Decrement moves the value down one step, stopping at Min.
func (k *Knob) Decrement() (float64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.apply(k.step.down(k.value, k.min, k.max))
}

// Set jumps to v, which must lie in [Min, Max].
func (k *Knob) Set(v float64) error {
	if !(v >= k.min && v <= k.max) {
		return fmt.Errorf("knob %q: %w: %v not in [%v, %v]", k.name, ErrOutOfRange, v, k.min, k.max)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	_, err := k.apply(v)
	return err
}

// Sync overwrites the value without calling the setter. It is used when the
// controlled parameter changed through another path.
func (k *Knob) Sync(v float64) {
	k.mu.Lock()
	k.value = min(max(v, k.min), k.max)
	k.mu.Unlock()
}

func (k *Knob) apply(next float64) (float64, error) {
	next = min(max(next, k.min), k.max)
	if err := k.set(next); err != nil {
		return k.value, fmt.Errorf("knob %q: %w", k.name, err)
	}
	k.value = next
	return next, nil
}
