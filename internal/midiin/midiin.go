// Package midiin maps MIDI control-change messages onto control surface
// commands.
package midiin

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"plasma-ng/internal/control"
)

// Binding sends controller values on a channel to an address, scaled from
// 0..127 onto [Min, Max].
type Binding struct {
	Channel    uint8
	Controller uint8
	Address    string
	Min        float64
	Max        float64
}

type ccKey struct {
	channel    uint8
	controller uint8
}

type Router struct {
	surface  control.Dispatcher
	bindings map[ccKey][]Binding
	logger   *log.Logger
}

func NewRouter(surface control.Dispatcher, bindings []Binding, logger *log.Logger) (*Router, error) {
	if surface == nil {
		return nil, errors.New("midi: nil surface")
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Router{surface: surface, bindings: make(map[ccKey][]Binding), logger: logger}
	for i, b := range bindings {
		switch {
		case b.Address == "":
			return nil, fmt.Errorf("midi: binding %d: empty address", i)
		case b.Channel > 15:
			return nil, fmt.Errorf("midi: binding %d: channel %d out of range 0..15", i, b.Channel)
		case b.Controller > 127:
			return nil, fmt.Errorf("midi: binding %d: controller %d out of range 0..127", i, b.Controller)
		case math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0):
			return nil, fmt.Errorf("midi: binding %d: range must be finite", i)
		}
		k := ccKey{b.Channel, b.Controller}
		for _, prev := range r.bindings[k] {
			if prev.Address == b.Address {
				return nil, fmt.Errorf("midi: %w: channel %d controller %d -> %s", control.ErrDuplicateBinding, b.Channel, b.Controller, b.Address)
			}
		}
		r.bindings[k] = append(r.bindings[k], b)
	}
	return r, nil
}

// Scale maps a 7-bit controller value linearly onto [min, max].
func Scale(value uint8, min, max float64) float64 {
	if value > 127 {
		value = 127
	}
	return min + (max-min)*float64(value)/127
}

// Handle dispatches a control-change message. It reports whether any
// binding matched.
func (r *Router) Handle(msg midi.Message) bool {
	var ch, cc, val uint8
	if !msg.GetControlChange(&ch, &cc, &val) {
		return false
	}
	bs := r.bindings[ccKey{ch, cc}]
	for _, b := range bs {
		v := Scale(val, b.Min, b.Max)
		if _, err := r.surface.Dispatch(b.Address, v); err != nil {
			r.logger.Printf("midi: cc %d/%d: %v", ch, cc, err)
		}
	}
	return len(bs) > 0
}

// FindPort returns the input port named name, or the first input port of
// the registered driver when name is empty.
func FindPort(name string) (drivers.In, error) {
	if name != "" {
		return midi.FindInPort(name)
	}
	drv := drivers.Get()
	if drv == nil {
		return nil, errors.New("midi: no driver registered")
	}
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("midi: list inputs: %w", err)
	}
	if len(ins) == 0 {
		return nil, errors.New("midi: no input ports")
	}
	return ins[0], nil
}

// Listen opens in and routes its messages until stop is called.
func Listen(in drivers.In, r *Router) (stop func(), err error) {
	if err := in.Open(); err != nil {
		return nil, fmt.Errorf("midi: open %s: %w", in, err)
	}
	stopFn, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		r.Handle(msg)
	}, midi.HandleError(func(listenErr error) {
		r.logger.Printf("midi: %s: %v", in, listenErr)
	}))
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("midi: listen %s: %w", in, err)
	}
	r.logger.Printf("midi: listening on %s", in)
	return func() {
		stopFn()
		_ = in.Close()
	}, nil
}
