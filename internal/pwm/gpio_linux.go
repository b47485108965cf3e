//go:build linux

package pwm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// gpioGate drives a BCM GPIO as a digital output using the Linux GPIO
// character device. The line is high while the output is started with a
// non-zero duty cycle. Frequency is stored but not synthesized; this backend
// gates an external oscillator, typically from the interrupter.
type gpioGate struct {
	output

	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

var gpioChipCandidates = func() []string {
	// Pi 5 kernel variants can expose header GPIOs on gpiochip0 or gpiochip4.
	chips := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chips = append(chips, filepath.Join("/dev", name))
		}
	}
	return chips
}

func openGPIO(pin int) (Device, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("%w: gpio pin %d", ErrInvalidParameter, pin)
	}

	// On Pi, line names are commonly "GPIO18", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	for _, chipPath := range gpioChipCandidates() {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("plasma-ng"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		g := &gpioGate{chip: chip, line: line}
		g.stopped = true
		g.gate = true
		g.apply = g.sync
		return g, nil
	}

	return nil, fmt.Errorf("%w: gpio line %q not found (or busy)", ErrDeviceUnavailable, lineName)
}

func (g *gpioGate) sync(hz, duty float64, on bool) error {
	if g.line == nil {
		return fmt.Errorf("pwm: gpio line closed")
	}
	v := 0
	if on && duty > 0 {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpioGate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.line == nil {
		return nil
	}
	// Leave the output low.
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	g.stopped = true
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
