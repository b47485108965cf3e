package pwm

import "sync"

// output carries the state shared by the hardware drivers. Every change is
// validated first, pushed to the device through apply, and committed only if
// apply succeeds.
type output struct {
	mu      sync.Mutex
	freq    float64
	duty    float64
	stopped bool
	// gate marks on/off devices that do not synthesize a frequency and may
	// run at frequency 0.
	gate bool

	// apply drives the device to the given state. Called with mu held.
	apply func(hz, duty float64, on bool) error
}

func (o *output) Frequency() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.freq
}

func (o *output) SetFrequency(hz float64) error {
	if err := ValidateFrequency(hz); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.apply(hz, o.duty, o.runs(hz)); err != nil {
		return err
	}
	o.freq = hz
	return nil
}

func (o *output) DutyCycle() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duty
}

func (o *output) SetDutyCycle(d float64) error {
	if err := ValidateDutyCycle(d); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.apply(o.freq, d, o.runs(o.freq)); err != nil {
		return err
	}
	o.duty = d
	return nil
}

func (o *output) runs(hz float64) bool {
	return !o.stopped && (hz > 0 || o.gate)
}

// Start turns the output on. A device with frequency 0 stays stopped.
func (o *output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.stopped || (o.freq <= 0 && !o.gate) {
		return nil
	}
	if err := o.apply(o.freq, o.duty, true); err != nil {
		return err
	}
	o.stopped = false
	return nil
}

func (o *output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil
	}
	if err := o.apply(o.freq, o.duty, false); err != nil {
		return err
	}
	o.stopped = true
	return nil
}

func (o *output) IsStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}
