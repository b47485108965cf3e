package web

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogBuffer_PartialLines(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("first\nsec"))
	if got := b.Last(); got != "first" {
		t.Fatalf("Last=%q want first", got)
	}
	_, _ = b.Write([]byte("ond\r\n\nthird\n"))

	lines, dropped := b.Snapshot(0)
	if dropped != 0 {
		t.Fatalf("dropped=%d", dropped)
	}
	want := []string{"first", "second", "third"}
	if fmt.Sprint(lines) != fmt.Sprint(want) {
		t.Fatalf("lines=%q want %q", lines, want)
	}
}

func TestLogBuffer_DropsOldest(t *testing.T) {
	b := NewLogBuffer(3)
	logger := log.New(b, "", 0)
	for i := 0; i < 5; i++ {
		logger.Printf("line %d", i)
	}
	lines, dropped := b.Snapshot(10)
	if dropped != 2 {
		t.Fatalf("dropped=%d want 2", dropped)
	}
	if len(lines) != 3 || lines[0] != "line 2" || lines[2] != "line 4" {
		t.Fatalf("lines=%q", lines)
	}
	lines, _ = b.Snapshot(1)
	if len(lines) != 1 || lines[0] != "line 4" {
		t.Fatalf("tail=1 lines=%q", lines)
	}
}

func TestLogBuffer_Handler(t *testing.T) {
	b := NewLogBuffer(5)
	_, _ = io.WriteString(b, "a\nb\n")

	ts := httptest.NewServer(Handler(NewStatus(), b))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?tail=1")
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	var out LogsResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out.Lines) != 1 || out.Lines[0] != "b" {
		t.Fatalf("lines=%q", out.Lines)
	}

	resp, err = http.Get(ts.URL + "/api/logs?format=text")
	if err != nil {
		t.Fatalf("get logs text: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "a\nb\n" {
		t.Fatalf("body=%q", body)
	}

	for _, q := range []string{"0", "x", "5001"} {
		resp, err := http.Get(ts.URL + "/api/logs?tail=" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(msg), "tail must be") {
			t.Fatalf("tail=%s code=%d body=%q", q, resp.StatusCode, msg)
		}
	}
}

func TestHandler_NoLogsRoute(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), nil))
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/api/logs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}
