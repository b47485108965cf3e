package timing

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Worker owns the lifecycle of one timing loop: Stopped -> Running -> Stopped.
//
// Start and Stop are serialized, so concurrent Start calls never spawn two
// loops. Stop blocks until the loop goroutine has returned.
type Worker struct {
	name   string
	logger *log.Logger

	mu       sync.Mutex
	running  atomic.Bool
	stopping atomic.Bool
	done     chan struct{}

	errMu   sync.Mutex
	lastErr error
}

func NewWorker(name string, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{name: name, logger: logger}
}

// Start runs tick repeatedly on a new goroutine until Stop is called or tick
// returns an error. exit, if non-nil, runs on the loop goroutine after the
// last tick. Start reports false if the loop was already running.
func (w *Worker) Start(tick func() error, exit func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running.Load() {
		return false
	}
	if w.done != nil {
		// A loop that ended on its own may still be unwinding.
		<-w.done
	}

	w.stopping.Store(false)
	w.setErr(nil)
	w.running.Store(true)
	done := make(chan struct{})
	w.done = done

	go func() {
		defer close(done)
		defer w.running.Store(false)
		if exit != nil {
			defer exit()
		}
		defer func() {
			if r := recover(); r != nil {
				w.fail(fmt.Errorf("%s: loop panic: %v", w.name, r))
			}
		}()
		for !w.stopping.Load() {
			if err := tick(); err != nil {
				w.fail(err)
				return
			}
		}
	}()
	return true
}

// Stop signals the loop and waits for it to exit. It returns immediately if
// the loop is not running.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return
	}
	w.stopping.Store(true)
	<-w.done
}

// Stopping reports whether the loop has been asked to exit. Wait steps poll it.
func (w *Worker) Stopping() bool { return w.stopping.Load() }

func (w *Worker) Running() bool { return w.running.Load() }

// LastError returns the error that ended the most recent run, if any.
func (w *Worker) LastError() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.lastErr
}

func (w *Worker) fail(err error) {
	w.setErr(err)
	w.logger.Printf("%s: loop stopped: %v", w.name, err)
}

func (w *Worker) setErr(err error) {
	w.errMu.Lock()
	w.lastErr = err
	w.errMu.Unlock()
}
