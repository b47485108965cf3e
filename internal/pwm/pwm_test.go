package pwm

import (
	"errors"
	"math"
	"testing"
)

func TestMock_FrequencyRoundTrip(t *testing.T) {
	m, err := NewMock(0, 0.5)
	if err != nil {
		t.Fatalf("NewMock: %v", err)
	}
	for _, hz := range []float64{0, 0.001, 1, 440, 123456.789} {
		if err := m.SetFrequency(hz); err != nil {
			t.Fatalf("SetFrequency(%v): %v", hz, err)
		}
		if got := m.Frequency(); got != hz {
			t.Fatalf("Frequency()=%v want %v", got, hz)
		}
	}
}

func TestMock_InvalidParametersLeaveStateUnchanged(t *testing.T) {
	m, err := NewMock(100, 0.5)
	if err != nil {
		t.Fatalf("NewMock: %v", err)
	}
	for _, hz := range []float64{-1, math.NaN(), math.Inf(1)} {
		if err := m.SetFrequency(hz); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("SetFrequency(%v) err=%v want ErrInvalidParameter", hz, err)
		}
	}
	for _, d := range []float64{-0.1, 1.01, math.NaN()} {
		if err := m.SetDutyCycle(d); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("SetDutyCycle(%v) err=%v want ErrInvalidParameter", d, err)
		}
	}
	if m.Frequency() != 100 || m.DutyCycle() != 0.5 {
		t.Fatalf("state mutated: %s", Describe(m))
	}
}

func TestMock_SettersDoNotStartOrStop(t *testing.T) {
	m, _ := NewMock(100, 0.5)
	_ = m.SetFrequency(200)
	_ = m.SetDutyCycle(0.2)
	if !m.IsStopped() {
		t.Fatalf("setters started the output")
	}
	_ = m.Start()
	_ = m.SetFrequency(300)
	if m.IsStopped() {
		t.Fatalf("setters stopped the output")
	}
}

func TestMock_StartStopIdempotent(t *testing.T) {
	m, _ := NewMock(100, 0.5)
	for i := 0; i < 3; i++ {
		if err := m.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := m.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}
	if ev := m.Events(); len(ev) != 2 || !ev[0].On || ev[1].On {
		t.Fatalf("events=%+v want one on and one off", ev)
	}
	starts, stops := m.Calls()
	if starts != 3 || stops != 2 {
		t.Fatalf("calls=(%d,%d) want (3,2)", starts, stops)
	}
}

func TestMock_Fail(t *testing.T) {
	m, _ := NewMock(100, 0.5)
	boom := errors.New("boom")
	m.Fail(boom)
	if err := m.Start(); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if !m.IsStopped() {
		t.Fatalf("failed Start changed state")
	}
	m.Fail(nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestNewMock_RejectsInvalid(t *testing.T) {
	if _, err := NewMock(-1, 0.5); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err=%v want ErrInvalidParameter", err)
	}
	if _, err := NewMock(1, 2); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err=%v want ErrInvalidParameter", err)
	}
}
