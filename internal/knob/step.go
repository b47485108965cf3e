package knob

import (
	"fmt"
	"math"
)

// Step decides where Increment and Decrement land.
type Step interface {
	up(v, min, max float64) float64
	down(v, min, max float64) float64
	check(min, max float64) error
}

// FixedTicks divides [min, max] into n equal ticks. Values land exactly on
// the tick grid min + (max-min)*k/n.
func FixedTicks(n int) Step { return fixedTicks(n) }

type fixedTicks int

// snap tolerance for values that are a rounding error away from a tick.
const tickEpsilon = 1e-9

func (n fixedTicks) check(min, max float64) error {
	if n <= 0 {
		return fmt.Errorf("tick count must be positive, not %d", int(n))
	}
	if math.IsInf(min, 0) || math.IsInf(max, 0) {
		return fmt.Errorf("%w: fixed ticks need a finite range", ErrOutOfRange)
	}
	return nil
}

func (n fixedTicks) tick(v, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (v - min) / (max - min) * float64(n)
}

func (n fixedTicks) at(k, min, max float64) float64 {
	return min + (max-min)*k/float64(n)
}

func (n fixedTicks) up(v, min, max float64) float64 {
	k := math.Floor(n.tick(v, min, max)+tickEpsilon) + 1
	return n.at(math.Min(k, float64(n)), min, max)
}

func (n fixedTicks) down(v, min, max float64) float64 {
	k := math.Ceil(n.tick(v, min, max)-tickEpsilon) - 1
	return n.at(math.Max(k, 0), min, max)
}

// Proportional steps by about 1% of the current value's order of magnitude:
// 10^floor(log10(v/2)) / 100. Non-positive values step by floor.
func Proportional(floor float64) Step { return proportional(floor) }

// DefaultFloor is the proportional step used at or below zero.
const DefaultFloor = 0.0001

type proportional float64

func (p proportional) check(min, max float64) error {
	if !(p > 0) {
		return fmt.Errorf("proportional floor must be positive, not %v", float64(p))
	}
	return nil
}

func (p proportional) size(v float64) float64 {
	if v <= 0 {
		return float64(p)
	}
	return math.Pow(10, math.Floor(math.Log10(v/2))) / 100
}

func (p proportional) up(v, _, _ float64) float64   { return v + p.size(v) }
func (p proportional) down(v, _, _ float64) float64 { return v - p.size(v) }
