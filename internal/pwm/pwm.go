package pwm

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidParameter is returned when a frequency or duty cycle is out of range.
	// State is never mutated when it is returned.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDeviceUnavailable is returned by driver constructors that cannot reach
	// the underlying hardware. It is not retried.
	ErrDeviceUnavailable = errors.New("pwm device unavailable")
)

// PWM is the capability the control plane drives.
//
// SetFrequency and SetDutyCycle never start or stop the output; they only
// change what the output looks like while it runs. Start and Stop are
// idempotent. Implementations must be safe for concurrent use.
type PWM interface {
	Frequency() float64
	SetFrequency(hz float64) error
	DutyCycle() float64
	SetDutyCycle(d float64) error
	Start() error
	Stop() error
	IsStopped() bool
}

// Device is a PWM that holds an OS or network resource.
type Device interface {
	PWM
	Close() error
}

// ValidateFrequency rejects negative and non-finite frequencies.
func ValidateFrequency(hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) || hz < 0 {
		return fmt.Errorf("%w: frequency should be non-negative, not %v", ErrInvalidParameter, hz)
	}
	return nil
}

// ValidateDutyCycle rejects duty cycles outside [0,1].
func ValidateDutyCycle(d float64) error {
	if math.IsNaN(d) || d < 0 || d > 1 {
		return fmt.Errorf("%w: duty cycle should be in [0,1], not %v", ErrInvalidParameter, d)
	}
	return nil
}

// Describe formats the state of p for logs.
func Describe(p PWM) string {
	if p == nil {
		return "pwm(nil)"
	}
	return fmt.Sprintf("pwm(frequency=%g, duty_cycle=%g, stopped=%t)", p.Frequency(), p.DutyCycle(), p.IsStopped())
}
