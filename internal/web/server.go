package web

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"
)

// Handler serves the status API. logs may be nil.
func Handler(status *Status, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})
	mux.Handle("/api/about", aboutHandler(status.Instance()))
	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !allowGet(w, r) {
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><title>plasma-ng</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>plasma-ng</h1><p>mode %s, up %ds</p><ul>", html.EscapeString(snap.Mode), snap.UptimeSec)
		for _, ch := range snap.Channels {
			_, _ = fmt.Fprintf(w, "<li>/%s: pwm %.2f Hz duty %.2f running=%t, interrupter %.2f Hz running=%t, fm running=%t</li>",
				html.EscapeString(ch.Root), ch.PWM.Frequency, ch.PWM.DutyCycle, ch.PWM.Running,
				ch.Interrupter.Frequency, ch.Interrupter.Running, ch.Modulator.Running)
		}
		_, _ = fmt.Fprintf(w, "</ul><p><a href=\"/api/status\">status</a> <a href=\"/api/logs?format=text\">logs</a></p></body></html>")
	})

	return mux
}

// Serve runs the status API until ctx is done.
func Serve(ctx context.Context, listenAddr string, status *Status, logs *LogBuffer) error {
	if status == nil {
		status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, logs),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
