package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"plasma-ng/internal/config"
	"plasma-ng/internal/pwm"
	"plasma-ng/internal/web"
)

func main() {
	var (
		configPath string
		forceMock  bool
		mode       string
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "./plasma.yaml", "Path to YAML config")
	flag.BoolVar(&forceMock, "mock", false, "Use the in-memory PWM backend for every channel")
	flag.StringVar(&mode, "mode", "", "Override control.mode (osc or keyboard)")
	flag.BoolVar(&verbose, "v", false, "Log every dispatched command")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := applyOverrides(&cfg, mode, forceMock); err != nil {
		log.Fatalf("config: %v", err)
	}

	logs := web.NewLogBuffer(cfg.Log.BufferLines)
	out, closeLog, err := logOutput(cfg, logs, os.Stderr)
	if err != nil {
		log.Fatalf("log setup failed: %v", err)
	}
	defer closeLog()
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger := log.Default()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, logger, logs, verbose)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer rt.close()

	logger.Printf("plasma-ng starting mode=%s channels=%d", cfg.Control.Mode, len(rt.channels))
	if err := rt.run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Printf("plasma-ng stopped: %v", err)
		rt.close()
		os.Exit(1)
	}
	logger.Printf("plasma-ng stopping")
}

// applyOverrides folds command-line flags into a loaded config.
func applyOverrides(cfg *config.Config, mode string, forceMock bool) error {
	if mode != "" {
		if mode != config.ModeOSC && mode != config.ModeKeyboard {
			return errInvalidMode(mode)
		}
		cfg.Control.Mode = mode
	}
	if forceMock {
		for i := range cfg.Channels {
			cfg.Channels[i].PWM.Backend = pwm.BackendMock
		}
	}
	return nil
}

// logOutput tees log lines into the in-memory buffer, the optional log file
// and, outside keyboard mode, the console.
func logOutput(cfg config.Config, logs *web.LogBuffer, console io.Writer) (io.Writer, func(), error) {
	writers := []io.Writer{logs}
	if cfg.Control.Mode != config.ModeKeyboard && console != nil {
		writers = append(writers, console)
	}
	closeFn := func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closeFn = func() { _ = f.Close() }
	}
	return io.MultiWriter(writers...), closeFn, nil
}
