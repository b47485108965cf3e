// Package interrupter gates a PWM output on and off at a second, slower
// frequency.
package interrupter

import (
	"fmt"
	"log"
	"time"

	"plasma-ng/internal/pwm"
	"plasma-ng/internal/timing"
)

// idlePoll is how long a tick waits when there is nothing to toggle.
var idlePoll = time.Millisecond

// Interrupter drives the on/off transitions of one PWM from a dedicated loop.
//
// While it runs, no other caller should start or stop the PWM. Frequency and
// duty cycle may be changed at any time; the loop picks them up on its next
// tick.
type Interrupter struct {
	pwm    pwm.PWM
	logger *log.Logger
	freq   *timing.Float64
	duty   *timing.Float64
	worker *timing.Worker
	stats  *timing.Stats
}

func New(p pwm.PWM, hz, duty float64, logger *log.Logger) (*Interrupter, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: interrupter needs a pwm", pwm.ErrInvalidParameter)
	}
	if err := pwm.ValidateFrequency(hz); err != nil {
		return nil, err
	}
	if err := pwm.ValidateDutyCycle(duty); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Interrupter{
		pwm:    p,
		logger: logger,
		freq:   timing.NewFloat64(hz),
		duty:   timing.NewFloat64(duty),
		worker: timing.NewWorker("interrupter", logger),
		stats:  timing.NewStats(0),
	}, nil
}

func (i *Interrupter) PWM() pwm.PWM { return i.pwm }

func (i *Interrupter) Frequency() float64 { return i.freq.Load() }

func (i *Interrupter) SetFrequency(hz float64) error {
	if err := pwm.ValidateFrequency(hz); err != nil {
		return err
	}
	i.freq.Store(hz)
	return nil
}

func (i *Interrupter) DutyCycle() float64 { return i.duty.Load() }

func (i *Interrupter) SetDutyCycle(d float64) error {
	if err := pwm.ValidateDutyCycle(d); err != nil {
		return err
	}
	i.duty.Store(d)
	return nil
}

// Start launches the gating loop. It does nothing if the loop is running.
func (i *Interrupter) Start() {
	var drift time.Duration
	if i.worker.Start(func() error { return i.tick(&drift) }, i.exit) {
		i.logger.Printf("interrupter: started (frequency=%g, duty_cycle=%g)", i.Frequency(), i.DutyCycle())
	}
}

// Stop ends the loop and returns once it has exited with the PWM stopped.
func (i *Interrupter) Stop() {
	if !i.worker.Running() {
		// Still join a loop that ended on its own.
		i.worker.Stop()
		return
	}
	i.worker.Stop()
	i.logger.Printf("interrupter: stopped")
}

func (i *Interrupter) Running() bool { return i.worker.Running() }

// LastError returns the error that ended the previous run, if any.
func (i *Interrupter) LastError() error { return i.worker.LastError() }

// Stats reports how far each wait landed from its target.
func (i *Interrupter) Stats() timing.StatsSnapshot { return i.stats.Snapshot() }

// tick performs one on or off phase. drift carries the previous phase's
// timing error so the next wait can absorb it.
func (i *Interrupter) tick(drift *time.Duration) error {
	t0 := time.Now()
	hz := i.freq.Load()
	duty := i.duty.Load()

	if hz <= 0 {
		*drift = 0
		if err := i.hold(duty); err != nil {
			return err
		}
		timing.Sleep(idlePoll, i.worker.Stopping)
		return nil
	}

	period := 1 / hz
	var want float64
	switch on := !i.pwm.IsStopped(); {
	case !on && duty > 0:
		if err := i.pwm.Start(); err != nil {
			return fmt.Errorf("interrupter: start pwm: %w", err)
		}
		want = period * duty
	case on && duty < 1:
		if err := i.pwm.Stop(); err != nil {
			return fmt.Errorf("interrupter: stop pwm: %w", err)
		}
		want = period * (1 - duty)
	default:
		// Always on or always off: nothing to toggle.
		*drift = 0
		timing.Sleep(idlePoll, i.worker.Stopping)
		return nil
	}

	target := timing.Seconds(want) - *drift
	if !timing.SleepUntil(t0.Add(max(target, 0)), i.worker.Stopping) {
		return nil
	}
	limit := timing.Seconds(period)
	*drift = min(max(time.Since(t0)-target, -limit), limit)
	i.stats.Observe(*drift)
	return nil
}

// hold keeps the output steady when there is no gating frequency.
func (i *Interrupter) hold(duty float64) error {
	stopped := i.pwm.IsStopped()
	switch {
	case stopped && duty > 0:
		if err := i.pwm.Start(); err != nil {
			return fmt.Errorf("interrupter: start pwm: %w", err)
		}
	case !stopped && duty == 0:
		if err := i.pwm.Stop(); err != nil {
			return fmt.Errorf("interrupter: stop pwm: %w", err)
		}
	}
	return nil
}

func (i *Interrupter) exit() {
	if err := i.pwm.Stop(); err != nil {
		i.logger.Printf("interrupter: stop pwm on exit: %v", err)
	}
}
