//go:build !linux

package pwm

import "fmt"

// Stub implementations for non-Linux platforms.
func openSysfs(pin int) (Device, error) {
	return nil, fmt.Errorf("%w: sysfs pwm unsupported on this platform", ErrDeviceUnavailable)
}

func openGPIO(pin int) (Device, error) {
	return nil, fmt.Errorf("%w: gpio unsupported on this platform", ErrDeviceUnavailable)
}

func openRPIO(pin int) (Device, error) {
	return nil, fmt.Errorf("%w: rpio unsupported on this platform", ErrDeviceUnavailable)
}

func isRaspberryPi5() bool { return false }
