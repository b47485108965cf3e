// Package keyboard drives a control surface from single key presses on a
// terminal and draws the knob panel.
package keyboard

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"

	"plasma-ng/internal/control"
)

type Config struct {
	In      io.Reader
	Out     io.Writer
	Surface control.Dispatcher
	Knobs   []control.KnobBinding
	// Quit defaults to "q".
	Quit string
	// Help is shown next to the quit hint.
	Help string
	// Status, if set, adds a line below the knobs on every redraw.
	Status func() string
	Logger *log.Logger
}

// Run redraws the panel and dispatches keys until the quit key is pressed,
// the input ends, or ctx is cancelled. Unknown keys ring the bell.
func Run(ctx context.Context, cfg Config) error {
	if cfg.In == nil || cfg.Out == nil || cfg.Surface == nil {
		return errors.New("keyboard: In, Out and Surface are required")
	}
	if cfg.Quit == "" {
		cfg.Quit = "q"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type keyResult struct {
		key string
		err error
	}
	keys := make(chan keyResult)
	go func() {
		r := bufio.NewReader(cfg.In)
		for {
			k, err := ReadKey(r)
			select {
			case keys <- keyResult{k, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var message string
	for {
		status := message
		if cfg.Status != nil {
			if s := cfg.Status(); s != "" {
				if status != "" {
					status = s + "\r\n" + status
				} else {
					status = s
				}
			}
		}
		if err := Render(cfg.Out, cfg.Quit, cfg.Help, cfg.Knobs, status); err != nil {
			return err
		}

		var kr keyResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case kr = <-keys:
		}
		if kr.err != nil {
			if errors.Is(kr.err, io.EOF) {
				return nil
			}
			return kr.err
		}
		if kr.key == cfg.Quit {
			return nil
		}

		message = ""
		ok, err := cfg.Surface.Dispatch(kr.key)
		switch {
		case !ok:
			_, _ = io.WriteString(cfg.Out, bell)
		case err != nil:
			message = err.Error()
			cfg.Logger.Printf("keyboard: %v", err)
		}
	}
}
