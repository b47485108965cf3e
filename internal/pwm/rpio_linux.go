//go:build linux

package pwm

import (
	"fmt"
	"math"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpioCycleLen is the PWM range; duty resolution is 1/rpioCycleLen.
const rpioCycleLen = 100

// rpioMu guards the process-wide /dev/gpiomem mapping shared by all pins.
var (
	rpioMu   sync.Mutex
	rpioRefs int
)

// rpioPWM drives the BCM hardware PWM through memory-mapped registers. It
// does not work on Pi 5; use the sysfs backend there.
type rpioPWM struct {
	output

	pin    rpio.Pin
	closed bool
}

func openRPIO(pin int) (Device, error) {
	if _, err := sysfsChannel(pin); err != nil {
		return nil, fmt.Errorf("%w: gpio %d is not a hardware pwm pin", ErrInvalidParameter, pin)
	}

	rpioMu.Lock()
	defer rpioMu.Unlock()
	if rpioRefs == 0 {
		if err := rpio.Open(); err != nil {
			return nil, fmt.Errorf("%w: rpio open: %v", ErrDeviceUnavailable, err)
		}
	}
	rpioRefs++

	d := &rpioPWM{pin: rpio.Pin(pin)}
	d.stopped = true
	d.apply = d.sync
	d.pin.Mode(rpio.Pwm)
	rpio.StopPwm()
	return d, nil
}

func (d *rpioPWM) sync(hz, duty float64, on bool) error {
	if !on || hz <= 0 {
		rpio.StopPwm()
		return nil
	}
	clock := int(math.Round(hz * rpioCycleLen))
	if clock <= 0 {
		return fmt.Errorf("%w: frequency %g too low for rpio", ErrInvalidParameter, hz)
	}
	d.pin.Freq(clock)
	d.pin.DutyCycle(uint32(math.Round(duty*rpioCycleLen)), rpioCycleLen)
	rpio.StartPwm()
	return nil
}

func (d *rpioPWM) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	// StopPwm halts the whole peripheral, both channels included.
	rpio.StopPwm()
	d.stopped = true

	rpioMu.Lock()
	defer rpioMu.Unlock()
	rpioRefs--
	if rpioRefs > 0 {
		return nil
	}
	return rpio.Close()
}
