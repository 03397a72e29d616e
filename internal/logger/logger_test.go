package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInitWriter_EmitsServiceAndRunID(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "analyzer-test", slog.LevelInfo)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	ctx := WithRunID(context.Background(), "AAPL-1")
	l.Info("analysis done", Attrs(ctx)...)
	l.Debug("filtered out")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["service"] != "analyzer-test" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["run_id"] != "AAPL-1" {
		t.Errorf("run_id = %v", rec["run_id"])
	}
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if id := RunID(ctx); id != "" {
		t.Errorf("expected empty run id, got %q", id)
	}
	ctx = WithRunID(ctx, "MSFT-42")
	if id := RunID(ctx); id != "MSFT-42" {
		t.Errorf("expected 'MSFT-42', got %q", id)
	}
}

func TestNewRunID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	id := NewRunID("RELIANCE.NS", ts)
	if !strings.HasPrefix(id, "RELIANCE.NS-") {
		t.Errorf("expected symbol prefix, got %s", id)
	}
	if !strings.Contains(id, "123456789") {
		t.Errorf("expected nanoseconds in id, got %s", id)
	}
}

func TestAttrs_Empty(t *testing.T) {
	if attrs := Attrs(context.Background()); attrs != nil {
		t.Errorf("expected nil attrs, got %v", attrs)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
