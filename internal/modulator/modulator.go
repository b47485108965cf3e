// Package modulator varies a parameter along a waveform from a dedicated
// timing loop. Its usual target is the frequency of a PWM output.
package modulator

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"plasma-ng/internal/pwm"
	"plasma-ng/internal/timing"
)

// Setter receives each computed output.
type Setter func(v float64) error

type Config struct {
	// Frequency of the modulation; 0 holds the output at Center.
	Frequency float64
	// Amplitude is the peak deviation from Center (the FM spread).
	Amplitude float64
	Center    float64
	// UpdateRate is how many outputs are computed per second.
	UpdateRate float64
	// Waveform defaults to Sine.
	Waveform Waveform
}

const DefaultUpdateRate = 60.0

type Modulator struct {
	set    Setter
	logger *log.Logger
	wave   Waveform
	epoch  time.Time

	freq   *timing.Float64
	amp    *timing.Float64
	center *timing.Float64
	rate   *timing.Float64
	last   *timing.Float64

	worker *timing.Worker
	stats  *timing.Stats

	mu    sync.Mutex
	phase phaseTracker
}

func validateNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s should be non-negative, not %v", pwm.ErrInvalidParameter, name, v)
	}
	return nil
}

func validateRate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: update rate should be positive, not %v", pwm.ErrInvalidParameter, v)
	}
	return nil
}

func New(set Setter, cfg Config, logger *log.Logger) (*Modulator, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: modulator needs a setter", pwm.ErrInvalidParameter)
	}
	if cfg.UpdateRate == 0 {
		cfg.UpdateRate = DefaultUpdateRate
	}
	if cfg.Waveform == nil {
		cfg.Waveform = Sine
	}
	if err := pwm.ValidateFrequency(cfg.Frequency); err != nil {
		return nil, err
	}
	if err := validateNonNegative("amplitude", cfg.Amplitude); err != nil {
		return nil, err
	}
	if err := validateNonNegative("center", cfg.Center); err != nil {
		return nil, err
	}
	if err := validateRate(cfg.UpdateRate); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Modulator{
		set:    set,
		logger: logger,
		wave:   cfg.Waveform,
		epoch:  time.Now(),
		freq:   timing.NewFloat64(cfg.Frequency),
		amp:    timing.NewFloat64(cfg.Amplitude),
		center: timing.NewFloat64(cfg.Center),
		rate:   timing.NewFloat64(cfg.UpdateRate),
		last:   timing.NewFloat64(cfg.Center),
		worker: timing.NewWorker("modulator", logger),
		stats:  timing.NewStats(0),
	}, nil
}

func (m *Modulator) Frequency() float64 { return m.freq.Load() }

func (m *Modulator) SetFrequency(hz float64) error {
	if err := pwm.ValidateFrequency(hz); err != nil {
		return err
	}
	m.freq.Store(hz)
	return nil
}

func (m *Modulator) Amplitude() float64 { return m.amp.Load() }

func (m *Modulator) SetAmplitude(a float64) error {
	if err := validateNonNegative("amplitude", a); err != nil {
		return err
	}
	m.amp.Store(a)
	return nil
}

func (m *Modulator) Center() float64 { return m.center.Load() }

func (m *Modulator) SetCenter(c float64) error {
	if err := validateNonNegative("center", c); err != nil {
		return err
	}
	m.center.Store(c)
	return nil
}

func (m *Modulator) UpdateRate() float64 { return m.rate.Load() }

func (m *Modulator) SetUpdateRate(hz float64) error {
	if err := validateRate(hz); err != nil {
		return err
	}
	m.rate.Store(hz)
	return nil
}

// Output is the value most recently passed to the setter.
func (m *Modulator) Output() float64 { return m.last.Load() }

// Start launches the loop. It does nothing if the loop is running.
func (m *Modulator) Start() {
	var next time.Time
	if m.worker.Start(func() error { return m.tick(&next) }, nil) {
		m.logger.Printf("modulator: started (frequency=%g, amplitude=%g, center=%g)", m.Frequency(), m.Amplitude(), m.Center())
	}
}

// Stop ends the loop and waits for it to exit.
func (m *Modulator) Stop() {
	running := m.worker.Running()
	m.worker.Stop()
	if running {
		m.logger.Printf("modulator: stopped")
	}
}

func (m *Modulator) Running() bool { return m.worker.Running() }

func (m *Modulator) LastError() error { return m.worker.LastError() }

// Stats reports how late each tick woke relative to its schedule.
func (m *Modulator) Stats() timing.StatsSnapshot { return m.stats.Snapshot() }

func (m *Modulator) tick(next *time.Time) error {
	now := time.Now()
	if next.IsZero() {
		*next = now
	}
	m.stats.Observe(now.Sub(*next))

	v := m.valueAt(now.Sub(m.epoch).Seconds())
	if err := m.set(v); err != nil {
		return fmt.Errorf("modulator: set output %g: %w", v, err)
	}
	m.last.Store(v)

	interval := timing.Seconds(1 / m.rate.Load())
	*next = next.Add(interval)
	if behind := time.Since(*next); behind > interval {
		// Skip missed ticks instead of bursting to catch up.
		*next = time.Now().Add(interval)
	}
	timing.SleepUntil(*next, m.worker.Stopping)
	return nil
}

// valueAt computes the output t seconds after the modulator was created.
func (m *Modulator) valueAt(t float64) float64 {
	f := m.freq.Load()
	center := m.center.Load()

	m.mu.Lock()
	defer m.mu.Unlock()
	if f == 0 {
		m.phase.flat()
		return max(center, 0)
	}
	phase := m.phase.advance(t, f)
	return max(m.amp.Load()*m.wave(phase)+center, 0)
}
