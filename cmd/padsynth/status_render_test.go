package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"padsynth/internal/api"
	"padsynth/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("padsynth", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "padsynth:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("padsynth", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestPreflightLine(t *testing.T) {
	tests := []struct {
		name     string
		result   preflight.Result
		optional bool
		want     string
	}{
		{name: "passed", result: preflight.Result{Name: "State directory", Passed: true, Detail: "/var/lib/padsynth"}, want: "[OK] /var/lib/padsynth"},
		{name: "disabled", result: preflight.Result{Name: "MIDI output", Passed: true, Detail: "Disabled"}, optional: true, want: "[INFO] Disabled"},
		{name: "optional failure", result: preflight.Result{Name: "Audio output", Detail: "no pcm device"}, optional: true, want: "[WARN] no pcm device"},
		{name: "required failure", result: preflight.Result{Name: "GPIO chip", Detail: "permission denied"}, want: "[ERROR] permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preflightLine(tt.result, tt.optional, false)
			if !strings.Contains(got, tt.want) || !strings.Contains(got, tt.result.Name+":") {
				t.Fatalf("preflightLine = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestHardwareStatusLine(t *testing.T) {
	tests := []struct {
		name string
		hw   api.HardwareStatus
		want string
	}{
		{name: "disabled", hw: api.HardwareStatus{}, want: "[INFO] Disabled"},
		{name: "running", hw: api.HardwareStatus{Enabled: true, Running: true, Chip: "gpiochip0", Keys: 12, Encoders: 5}, want: "[OK]"},
		{name: "failing", hw: api.HardwareStatus{Enabled: true, Chip: "gpiochip0", LastError: "busy"}, want: "[ERROR] gpiochip0: busy"},
		{name: "starting", hw: api.HardwareStatus{Enabled: true, Chip: "gpiochip0"}, want: "[WARN] gpiochip0 starting"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hardwareStatusLine(tt.hw, false); !strings.Contains(got, tt.want) {
				t.Fatalf("hardwareStatusLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestFormatLogEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	got := formatLogEvent(api.LogEvent{
		Timestamp: ts,
		Level:     "warn",
		Message:   "midi mirror failed",
		Component: "controller",
		KeyID:     "MX3",
		Fields:    map[string]string{"error_hint": "reconnect", "empty": " "},
	})
	want := "2026-03-01 12:00:00 WARN [controller] key MX3 - midi mirror failed\n    - error_hint: reconnect"
	if got != want {
		t.Fatalf("formatLogEvent mismatch\n got: %q\nwant: %q", got, want)
	}

	if got := formatLogEvent(api.LogEvent{Timestamp: ts, Message: "hello"}); got != "2026-03-01 12:00:00 INFO - hello" {
		t.Fatalf("unexpected minimal line %q", got)
	}
}

func TestRenderTableHighlight(t *testing.T) {
	out := renderTable([]string{"Key", "Held"}, [][]string{{"MX1", "no"}, {"MX2", "yes"}},
		[]columnAlignment{alignLeft, alignLeft}, false, 1)
	if !strings.Contains(out, "MX2") || !strings.HasSuffix(out, "\n") {
		t.Fatalf("unexpected table %q", out)
	}
}
