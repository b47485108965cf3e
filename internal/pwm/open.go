package pwm

import (
	"fmt"
	"log"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMock   = "mock"
	BackendSysfs  = "sysfs"
	BackendRPIO   = "rpio"
	BackendGPIO   = "gpio"
	BackendPigpio = "pigpio"
	BackendAuto   = "auto"
)

type Config struct {
	Backend string
	// Pin is BCM GPIO numbering.
	Pin int
	// Host and Port address the pigpio daemon.
	Host string
	Port int

	Frequency float64
	DutyCycle float64

	Logger *log.Logger
}

var (
	openSysfsFn  = openSysfs
	openRPIOFn   = openRPIO
	openGPIOFn   = openGPIO
	openPigpioFn = openPigpio
	isPi5Fn      = isRaspberryPi5
)

// Open constructs the configured backend, stopped, with the initial
// frequency and duty cycle applied.
func Open(cfg Config) (Device, error) {
	if err := ValidateFrequency(cfg.Frequency); err != nil {
		return nil, err
	}
	if err := ValidateDutyCycle(cfg.DutyCycle); err != nil {
		return nil, err
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == BackendAuto {
		backend = BackendRPIO
		if isPi5Fn() {
			backend = BackendSysfs
		}
		if cfg.Logger != nil {
			cfg.Logger.Printf("pwm: auto backend selected %s", backend)
		}
	}

	var (
		dev Device
		err error
	)
	switch backend {
	case "", BackendMock:
		// Unlogged; the loops drive it at tick rate.
		dev = &Mock{stopped: true}
	case BackendSysfs:
		dev, err = openSysfsFn(cfg.Pin)
	case BackendRPIO:
		dev, err = openRPIOFn(cfg.Pin)
	case BackendGPIO:
		dev, err = openGPIOFn(cfg.Pin)
	case BackendPigpio:
		dev, err = openPigpioFn(cfg.Host, cfg.Port, cfg.Pin)
	default:
		return nil, fmt.Errorf("%w: unknown pwm backend %q", ErrInvalidParameter, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := dev.SetFrequency(cfg.Frequency); err != nil {
		_ = dev.Close()
		return nil, err
	}
	if err := dev.SetDutyCycle(cfg.DutyCycle); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return dev, nil
}
