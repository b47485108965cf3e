package pwm

import (
	"log"
	"sync"
	"time"
)

// Event is one on/off transition recorded by Mock.
type Event struct {
	At time.Time
	On bool
}

// Mock is an in-memory PWM. It records every Start/Stop call and every
// on/off transition so timing behaviour can be checked without hardware.
type Mock struct {
	// Logger, when set, receives one line per call.
	Logger *log.Logger

	mu      sync.Mutex
	freq    float64
	duty    float64
	stopped bool

	startCalls int
	stopCalls  int
	events     []Event
	fail       error
}

// NewMock returns a stopped Mock with the given initial settings.
func NewMock(hz, duty float64) (*Mock, error) {
	if err := ValidateFrequency(hz); err != nil {
		return nil, err
	}
	if err := ValidateDutyCycle(duty); err != nil {
		return nil, err
	}
	return &Mock{freq: hz, duty: duty, stopped: true}, nil
}

func (m *Mock) logf(format string, args ...any) {
	if m.Logger != nil {
		m.Logger.Printf("pwm mock: "+format, args...)
	}
}

func (m *Mock) Frequency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freq
}

func (m *Mock) SetFrequency(hz float64) error {
	if err := ValidateFrequency(hz); err != nil {
		return err
	}
	m.mu.Lock()
	m.freq = hz
	m.mu.Unlock()
	m.logf("frequency=%g", hz)
	return nil
}

func (m *Mock) DutyCycle() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty
}

func (m *Mock) SetDutyCycle(d float64) error {
	if err := ValidateDutyCycle(d); err != nil {
		return err
	}
	m.mu.Lock()
	m.duty = d
	m.mu.Unlock()
	m.logf("duty_cycle=%g", d)
	return nil
}

func (m *Mock) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	if m.fail != nil {
		return m.fail
	}
	if m.stopped {
		m.stopped = false
		m.events = append(m.events, Event{At: time.Now(), On: true})
	}
	m.logf("start")
	return nil
}

func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	if m.fail != nil {
		return m.fail
	}
	if !m.stopped {
		m.stopped = true
		m.events = append(m.events, Event{At: time.Now(), On: false})
	}
	m.logf("stop")
	return nil
}

func (m *Mock) IsStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Mock) Close() error { return nil }

// Fail makes every later Start and Stop return err. A nil err clears it.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Calls returns how many times Start and Stop were invoked.
func (m *Mock) Calls() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls, m.stopCalls
}

// Events returns a copy of the recorded transitions.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
