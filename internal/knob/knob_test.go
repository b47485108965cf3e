package knob

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

type calls struct {
	args []float64
	fail error
}

func (c *calls) set(v float64) error {
	if c.fail != nil {
		return c.fail
	}
	c.args = append(c.args, v)
	return nil
}

func TestFiftyIncrementsReachHalf(t *testing.T) {
	c := &calls{}
	k, err := New("A", 0, 1, 0, FixedTicks(100), c.set)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 50; i++ {
		if _, err := k.Increment(); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if got := k.Value(); got != 0.5 {
		t.Fatalf("value=%v want 0.5", got)
	}
	if len(c.args) != 50 {
		t.Fatalf("setter calls=%d want 50", len(c.args))
	}
	for i := 1; i < len(c.args); i++ {
		if c.args[i] <= c.args[i-1] {
			t.Fatalf("setter args not increasing at %d: %v then %v", i, c.args[i-1], c.args[i])
		}
	}
}

func TestNew_RejectsOutOfRangeInitial(t *testing.T) {
	set := func(float64) error { return nil }
	cases := []struct {
		name             string
		min, max, initial float64
		step             Step
	}{
		{"below", 0, 1, -0.1, FixedTicks(10)},
		{"above", 0, 1, 1.1, FixedTicks(10)},
		{"nan", 0, 1, math.NaN(), FixedTicks(10)},
		{"inverted", 1, 0, 0.5, Proportional(DefaultFloor)},
		{"ticks on infinite range", 0, math.Inf(1), 1, FixedTicks(10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New("k", tc.min, tc.max, tc.initial, tc.step, set); !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("err=%v want ErrOutOfRange", err)
			}
		})
	}
	if _, err := New("k", 0, 1, 0, FixedTicks(0), set); err == nil {
		t.Fatalf("expected error for zero ticks")
	}
}

func TestValueStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		lo := rng.Float64()*100 - 50
		hi := lo + rng.Float64()*100
		initial := lo + rng.Float64()*(hi-lo)
		var step Step = FixedTicks(1 + rng.Intn(50))
		if trial%2 == 1 {
			step = Proportional(DefaultFloor)
		}
		c := &calls{}
		k, err := New("k", lo, hi, initial, step, c.set)
		if err != nil {
			t.Fatalf("New(%v,%v,%v): %v", lo, hi, initial, err)
		}
		for i := 0; i < 300; i++ {
			var v float64
			if rng.Intn(2) == 0 {
				v, err = k.Increment()
			} else {
				v, err = k.Decrement()
			}
			if err != nil {
				t.Fatalf("step: %v", err)
			}
			if v < lo || v > hi || k.Value() != v {
				t.Fatalf("trial %d: value %v outside [%v,%v]", trial, v, lo, hi)
			}
		}
		if len(c.args) != 300 {
			t.Fatalf("setter calls=%d want 300", len(c.args))
		}
	}
}

func TestClampAtBounds(t *testing.T) {
	c := &calls{}
	k, err := New("duty", 0, 1, 1, FixedTicks(100), c.set)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v, _ := k.Increment(); v != 1 {
		t.Fatalf("increment at max=%v want 1", v)
	}
	if err := k.Set(0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := k.Decrement(); v != 0 {
		t.Fatalf("decrement at min=%v want 0", v)
	}
	if len(c.args) != 3 {
		t.Fatalf("setter calls=%d want 3", len(c.args))
	}
}

func TestFixedTicksSnapsOffGridValues(t *testing.T) {
	k, err := New("k", 0, 1, 0.333, FixedTicks(10), func(float64) error { return nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v, _ := k.Increment(); v != 0.4 {
		t.Fatalf("increment from 0.333=%v want 0.4", v)
	}
	if v, _ := k.Decrement(); v != 0.3 {
		t.Fatalf("decrement from 0.4=%v want 0.3", v)
	}
}

func TestProportionalStep(t *testing.T) {
	cases := []struct {
		value float64
		want  float64
	}{
		{0, 0.0001},
		{-3, 0.0001},
		{1000, 1},
		{150, 0.1},
		{100, 0.1},
		{3, 0.01},
		{0.5, 0.001},
	}
	p := proportional(DefaultFloor)
	for _, tc := range cases {
		if got := p.size(tc.value); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("size(%v)=%v want %v", tc.value, got, tc.want)
		}
	}

	k, err := New("hz", 0, math.Inf(1), 1000, Proportional(DefaultFloor), func(float64) error { return nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v, _ := k.Increment(); v != 1001 {
		t.Fatalf("increment from 1000=%v want 1001", v)
	}
}

func TestSetterFailureLeavesValue(t *testing.T) {
	boom := errors.New("rejected")
	c := &calls{fail: boom}
	k, err := New("k", 0, 10, 5, FixedTicks(10), c.set)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := k.Increment(); !errors.Is(err, boom) {
		t.Fatalf("Increment err=%v want %v", err, boom)
	}
	if err := k.Set(7); !errors.Is(err, boom) {
		t.Fatalf("Set err=%v want %v", err, boom)
	}
	if k.Value() != 5 {
		t.Fatalf("value=%v want 5", k.Value())
	}
	if err := k.Set(11); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Set(11) err=%v want ErrOutOfRange", err)
	}
}

func TestSync(t *testing.T) {
	c := &calls{}
	k, err := New("k", 0, 10, 5, FixedTicks(10), c.set)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	k.Sync(20)
	if k.Value() != 10 || len(c.args) != 0 {
		t.Fatalf("Sync: value=%v calls=%d", k.Value(), len(c.args))
	}
}
