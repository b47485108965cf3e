package keyboard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"plasma-ng/internal/control"
	"plasma-ng/internal/knob"
)

func TestReadKey(t *testing.T) {
	in := "a+\x1b[A\x1b[B\x1b[C\x1b[D\x1bOA\x1b[1;5C\r→ "
	r := bufio.NewReader(strings.NewReader(in))
	want := []string{"a", "+", control.KeyUp, control.KeyDown, control.KeyRight, control.KeyLeft, control.KeyUp, control.KeyRight, KeyEnter, "→", " "}
	for i, w := range want {
		got, err := ReadKey(r)
		if err != nil {
			t.Fatalf("key %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("key %d=%q want %q", i, got, w)
		}
	}
	if _, err := ReadKey(r); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want EOF", err)
	}
}

func TestReadKey_LoneEscape(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\x1b"))
	if got, err := ReadKey(r); err != nil || got != KeyEscape {
		t.Fatalf("ReadKey=(%q,%v) want esc", got, err)
	}
	r = bufio.NewReader(strings.NewReader("\x1bx"))
	if got, _ := ReadKey(r); got != KeyEscape {
		t.Fatalf("ReadKey=%q want esc", got)
	}
	if got, _ := ReadKey(r); got != "x" {
		t.Fatalf("ReadKey after escape=%q want x", got)
	}
}

func newKnob(t *testing.T, calls *[]float64) control.KnobBinding {
	t.Helper()
	k, err := knob.New("PWM duty cycle", 0, 1, 0.5, knob.FixedTicks(100), func(v float64) error {
		*calls = append(*calls, v)
		return nil
	})
	if err != nil {
		t.Fatalf("knob.New: %v", err)
	}
	return control.KnobBinding{Knob: k, Dec: "<", Inc: ">"}
}

func TestKnobLine(t *testing.T) {
	var calls []float64
	got := KnobLine(newKnob(t, &calls))
	want := "PWM duty cycle                 (<=dec, >=inc): 0.50"
	if got != want {
		t.Fatalf("KnobLine=%q want %q", got, want)
	}

	k, _ := knob.New(strings.Repeat("x", 40), 0, 10, 10, knob.FixedTicks(10), func(float64) error { return nil })
	line := KnobLine(control.KnobBinding{Knob: k, Dec: "-", Inc: "+"})
	if !strings.HasPrefix(line, strings.Repeat("x", 29)+" (") {
		t.Fatalf("long name not truncated: %q", line)
	}
}

func TestRender(t *testing.T) {
	var calls []float64
	var buf bytes.Buffer
	if err := Render(&buf, "q", "space=on/off", []control.KnobBinding{newKnob(t, &calls)}, "error here"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"To quit, type 'q'", "space=on/off", "PWM duty cycle", "error here", "\r\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
}

func TestRender_ShowsLiveValue(t *testing.T) {
	var calls []float64
	kb := newKnob(t, &calls)
	live := 0.9
	kb.Current = func() float64 { return live }

	var buf bytes.Buffer
	if err := Render(&buf, "q", "", []control.KnobBinding{kb}, ""); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "0.90") {
		t.Fatalf("panel shows stale value: %q", buf.String())
	}
	if len(calls) != 0 {
		t.Fatalf("render called setter: %v", calls)
	}
}

func TestRun_DispatchesKeysAndRingsBell(t *testing.T) {
	var calls []float64
	kb := newKnob(t, &calls)
	b := control.NewBuilder(log.New(io.Discard, "", 0))
	if err := control.BindKnobs(b, []control.KnobBinding{kb}); err != nil {
		t.Fatalf("BindKnobs: %v", err)
	}
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var out bytes.Buffer
	err = Run(context.Background(), Config{
		In:      strings.NewReader(">>z<q>>>"),
		Out:     &out,
		Surface: s,
		Knobs:   []control.KnobBinding{kb},
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("setter calls=%v want 3 before quit", calls)
	}
	if got := kb.Knob.Value(); got != 0.51 {
		t.Fatalf("value=%v want 0.51", got)
	}
	if n := strings.Count(out.String(), bell); n != 1 {
		t.Fatalf("bells=%d want 1", n)
	}
	if !strings.Contains(out.String(), "0.51") {
		t.Fatalf("panel never showed the new value")
	}
}

func TestRun_EndsAtEOF(t *testing.T) {
	b := control.NewBuilder(log.New(io.Discard, "", 0))
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var out bytes.Buffer
	if err := Run(context.Background(), Config{In: strings.NewReader(""), Out: &out, Surface: s}); err != nil {
		t.Fatalf("Run at EOF: %v", err)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	b := control.NewBuilder(log.New(io.Discard, "", 0))
	s, _ := b.Build()
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, Config{In: pr, Out: io.Discard, Surface: s}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}
