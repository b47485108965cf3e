package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"plasma-ng/internal/config"
	"plasma-ng/internal/control"
	"plasma-ng/internal/interrupter"
	"plasma-ng/internal/keyboard"
	"plasma-ng/internal/midiin"
	"plasma-ng/internal/modulator"
	"plasma-ng/internal/oscserver"
	"plasma-ng/internal/pwm"
	"plasma-ng/internal/web"
)

var (
	openPWMFn      = pwm.Open
	findMIDIPortFn = midiin.FindPort
	listenMIDIFn   = midiin.Listen
	serveOSCFn     = oscserver.Serve
	serveHTTPFn    = web.Serve
	makeRawFn      = keyboard.MakeRaw
	isTerminalFn   = keyboard.IsTerminal
)

type errInvalidMode string

func (e errInvalidMode) Error() string {
	return fmt.Sprintf("mode must be %q or %q, got %q", config.ModeOSC, config.ModeKeyboard, string(e))
}

type runtime struct {
	cfg     config.Config
	logger  *log.Logger
	logs    *web.LogBuffer
	verbose bool
	status  *web.Status

	channels []*control.Channel
	devices  []pwm.Device

	closeOnce sync.Once
}

func newRuntime(cfg config.Config, logger *log.Logger, logs *web.LogBuffer, verbose bool) (*runtime, error) {
	if logger == nil {
		logger = log.Default()
	}
	r := &runtime{cfg: cfg, logger: logger, logs: logs, verbose: verbose, status: web.NewStatus()}
	for i, cc := range cfg.Channels {
		ch, dev, err := buildChannel(cc, logger)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("channels[%d]: %w", i, err)
		}
		r.channels = append(r.channels, ch)
		r.devices = append(r.devices, dev)
		logger.Printf("channel /%s: %s", ch.Root(), pwm.Describe(dev))
	}
	r.status.SetMode(cfg.Control.Mode)
	return r, nil
}

func buildChannel(cc config.ChannelConfig, logger *log.Logger) (*control.Channel, pwm.Device, error) {
	dev, err := openPWMFn(pwm.Config{
		Backend:   cc.PWM.Backend,
		Pin:       cc.PWM.Pin,
		Host:      cc.PWM.Host,
		Port:      cc.PWM.Port,
		Frequency: cc.PWM.Frequency,
		DutyCycle: *cc.PWM.DutyCycle,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	intr, err := interrupter.New(dev, *cc.Interrupter.Frequency, *cc.Interrupter.DutyCycle, logger)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}
	wave, err := modulator.ParseWaveform(cc.Modulator.Waveform)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}
	mod, err := modulator.New(dev.SetFrequency, modulator.Config{
		Frequency:  cc.Modulator.Frequency,
		Amplitude:  cc.Modulator.Amplitude,
		Center:     *cc.Modulator.Center,
		UpdateRate: cc.Modulator.UpdateRate,
		Waveform:   wave,
	}, logger)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}
	ch, err := control.NewChannel(cc.Root, intr, mod, cc.FineSpread, logger)
	if err != nil {
		_ = dev.Close()
		return nil, nil, err
	}
	return ch, dev, nil
}

func (r *runtime) channelStatus() []control.ChannelStatus {
	out := make([]control.ChannelStatus, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch.Status())
	}
	return out
}

// surface binds the address tree of every channel. In keyboard mode the
// first channel's knobs and toggle keys are bound as well.
func (r *runtime) surface() (*control.Surface, []control.KnobBinding, error) {
	b := control.NewBuilder(r.logger)
	b.Verbose(r.verbose)
	if err := control.BindChannels(b, r.channels); err != nil {
		return nil, nil, err
	}

	var knobs []control.KnobBinding
	if r.cfg.Control.Mode == config.ModeKeyboard {
		first := r.channels[0]
		var err error
		if knobs, err = first.Knobs(); err != nil {
			return nil, nil, err
		}
		if err := control.BindKnobs(b, knobs); err != nil {
			return nil, nil, err
		}
		if err := first.BindKeys(b); err != nil {
			return nil, nil, err
		}
	}
	s, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return s, knobs, nil
}

// startOutputs turns on the output and the interrupter of the given channels.
func startOutputs(channels []*control.Channel) error {
	var errs []error
	for _, ch := range channels {
		if err := ch.Start(); err != nil {
			errs = append(errs, fmt.Errorf("/%s: %w", ch.Root(), err))
			continue
		}
		if err := ch.StartInterrupter(); err != nil {
			errs = append(errs, fmt.Errorf("/%s: %w", ch.Root(), err))
		}
	}
	return errors.Join(errs...)
}

// run serves the configured control sources until ctx is done or a source
// fails. in and out are the terminal for keyboard mode.
func (r *runtime) run(ctx context.Context, in io.Reader, out io.Writer) error {
	surf, knobs, err := r.surface()
	if err != nil {
		return err
	}
	r.status.SetSources(web.Sources{
		Channels: r.channelStatus,
		Knobs:    func() []control.KnobBinding { return knobs },
		Dispatch: surf.Stats,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
			if name == "keyboard" {
				cancel()
			}
		}()
	}

	if listen := strings.TrimSpace(r.cfg.HTTP.Listen); listen != "" {
		r.logger.Printf("http: listening on %s", listen)
		spawn("http", func(ctx context.Context) error { return serveHTTPFn(ctx, listen, r.status, r.logs) })
	}

	stopMIDI, err := r.startSources(surf, knobs, spawn, in, out)
	if err == nil {
		select {
		case <-ctx.Done():
		case err = <-errCh:
		}
	}
	cancel()
	wg.Wait()
	stopMIDI()
	r.stopChannels()
	return err
}

// startSources starts MIDI, the outputs the mode turns on, and the keyboard
// or OSC source. The returned stop func is never nil.
func (r *runtime) startSources(surf *control.Surface, knobs []control.KnobBinding, spawn func(string, func(context.Context) error), in io.Reader, out io.Writer) (func(), error) {
	stopMIDI := func() {}
	if r.cfg.MIDI.Enable {
		stop, err := r.startMIDI(surf)
		if err != nil {
			return stopMIDI, err
		}
		stopMIDI = stop
	}

	switch r.cfg.Control.Mode {
	case config.ModeKeyboard:
		if err := startOutputs(r.channels[:1]); err != nil {
			return stopMIDI, err
		}
		if err := r.channels[0].StartFM(); err != nil {
			return stopMIDI, err
		}
		spawn("keyboard", func(ctx context.Context) error { return r.runKeyboard(ctx, surf, knobs, in, out) })
	default:
		if r.cfg.Control.ImmediateOn {
			if err := startOutputs(r.channels); err != nil {
				return stopMIDI, err
			}
		}
		h := oscserver.NewHandler(surf, r.logger)
		spawn("osc", func(ctx context.Context) error { return serveOSCFn(ctx, r.cfg.Control.OSCListen, h) })
	}
	return stopMIDI, nil
}

func (r *runtime) startMIDI(surf control.Dispatcher) (func(), error) {
	bindings := make([]midiin.Binding, 0, len(r.cfg.MIDI.Bindings))
	for _, b := range r.cfg.MIDI.Bindings {
		bindings = append(bindings, midiin.Binding{
			Channel:    uint8(b.Channel),
			Controller: uint8(b.Controller),
			Address:    b.Address,
			Min:        b.Min,
			Max:        b.Max,
		})
	}
	router, err := midiin.NewRouter(surf, bindings, r.logger)
	if err != nil {
		return nil, err
	}
	port, err := findMIDIPortFn(r.cfg.MIDI.Port)
	if err != nil {
		return nil, err
	}
	return listenMIDIFn(port, router)
}

func (r *runtime) runKeyboard(ctx context.Context, surf control.Dispatcher, knobs []control.KnobBinding, in io.Reader, out io.Writer) error {
	if f, ok := in.(*os.File); ok && isTerminalFn(int(f.Fd())) {
		restore, err := makeRawFn(int(f.Fd()))
		if err != nil {
			return err
		}
		defer func() { _ = restore() }()
	}
	first := r.channels[0]
	return keyboard.Run(ctx, keyboard.Config{
		In:      in,
		Out:     out,
		Surface: surf,
		Knobs:   knobs,
		Help:    "space=output, m=fm, i=interrupter",
		Status: func() string {
			s := fmt.Sprintf("output=%s fm=%s interrupter=%s",
				onOff(first.Active()), onOff(first.Modulator().Running()), onOff(first.Interrupter().Running()))
			if r.logs != nil {
				if last := r.logs.Last(); last != "" {
					s += "\r\n" + last
				}
			}
			return s
		},
		Logger: r.logger,
	})
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (r *runtime) stopChannels() {
	for _, ch := range r.channels {
		if err := ch.Stop(); err != nil {
			r.logger.Printf("channel /%s: stop: %v", ch.Root(), err)
		}
	}
}

// close stops every channel and releases the devices. It is safe to call
// more than once.
func (r *runtime) close() {
	r.closeOnce.Do(func() {
		r.stopChannels()
		for _, dev := range r.devices {
			if err := dev.Close(); err != nil {
				r.logger.Printf("pwm: close: %v", err)
			}
		}
	})
}
