package web

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plasma-ng/internal/control"
	"plasma-ng/internal/interrupter"
	"plasma-ng/internal/modulator"
	"plasma-ng/internal/pwm"
)

func newTestChannel(t *testing.T) *control.Channel {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	m, err := pwm.NewMock(1000, 0.5)
	if err != nil {
		t.Fatalf("NewMock: %v", err)
	}
	intr, err := interrupter.New(m, 100, 0.5, logger)
	if err != nil {
		t.Fatalf("interrupter.New: %v", err)
	}
	mod, err := modulator.New(m.SetFrequency, modulator.Config{Frequency: 1, Amplitude: 5, Center: 1000}, logger)
	if err != nil {
		t.Fatalf("modulator.New: %v", err)
	}
	c, err := control.NewChannel("pwm0", intr, mod, 100, logger)
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func TestAPIStatus(t *testing.T) {
	ch := newTestChannel(t)
	knobs, err := ch.Knobs()
	if err != nil {
		t.Fatalf("Knobs: %v", err)
	}

	st := NewStatus()
	st.SetMode("keyboard")
	st.SetSources(Sources{
		Channels: func() []control.ChannelStatus { return []control.ChannelStatus{ch.Status()} },
		Knobs:    func() []control.KnobBinding { return knobs },
		Dispatch: func() control.DispatchStats { return control.DispatchStats{Handled: 3, Unknown: 1} },
	})

	ts := httptest.NewServer(Handler(st, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "plasma-ng" {
		t.Fatalf("service=%q", snap.Service)
	}
	if snap.Instance == "" || snap.Instance != st.Instance() {
		t.Fatalf("instance=%q want %q", snap.Instance, st.Instance())
	}
	if snap.Mode != "keyboard" {
		t.Fatalf("mode=%q", snap.Mode)
	}
	if len(snap.Channels) != 1 || snap.Channels[0].Root != "pwm0" {
		t.Fatalf("channels=%+v", snap.Channels)
	}
	if got := snap.Channels[0].PWM.Frequency; got != 1000 {
		t.Fatalf("pwm frequency=%v want 1000", got)
	}
	if got := snap.Channels[0].Interrupter.Frequency; got != 100 {
		t.Fatalf("interrupter frequency=%v want 100", got)
	}
	if len(snap.Knobs) != len(knobs) {
		t.Fatalf("knobs=%d want %d", len(snap.Knobs), len(knobs))
	}
	if snap.Knobs[0].Dec != control.KeyLeft || snap.Knobs[0].Value != 100 {
		t.Fatalf("knob[0]=%+v", snap.Knobs[0])
	}
	if snap.Dispatch.Handled != 3 || snap.Dispatch.Unknown != 1 {
		t.Fatalf("dispatch=%+v", snap.Dispatch)
	}
}

func TestAPIStatus_NoSources(t *testing.T) {
	st := NewStatus()
	snap := st.Snapshot(time.Time{})
	if snap.Channels == nil || len(snap.Channels) != 0 {
		t.Fatalf("channels=%v", snap.Channels)
	}
	if snap.Knobs != nil {
		t.Fatalf("knobs=%v", snap.Knobs)
	}
}

func TestStatus_InstancesDiffer(t *testing.T) {
	if NewStatus().Instance() == NewStatus().Instance() {
		t.Fatalf("expected distinct instance ids")
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), nil))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if got := resp.Header.Get("Allow"); got != http.MethodGet {
		t.Fatalf("Allow=%q", got)
	}
}

func TestRootPage(t *testing.T) {
	ch := newTestChannel(t)
	st := NewStatus()
	st.SetSources(Sources{Channels: func() []control.ChannelStatus { return []control.ChannelStatus{ch.Status()} }})
	ts := httptest.NewServer(Handler(st, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/pwm0") {
		t.Fatalf("body=%q", body)
	}

	resp2, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d", resp2.StatusCode)
	}
}

func TestAPIAbout(t *testing.T) {
	st := NewStatus()
	ts := httptest.NewServer(Handler(st, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/about")
	if err != nil {
		t.Fatalf("get about: %v", err)
	}
	defer resp.Body.Close()

	var about AboutResponse
	if err := json.NewDecoder(resp.Body).Decode(&about); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if about.Instance != st.Instance() {
		t.Fatalf("instance=%q", about.Instance)
	}
	if len(about.Waveforms) == 0 {
		t.Fatalf("waveforms empty")
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, nil, NewLogBuffer(10)) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/api/logs")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Serve err=%v want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return")
	}
}
