// Package logger provides structured logging on log/slog. It sets up a JSON
// handler tagged with the service name and carries an analysis run ID
// through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey string

const runIDKey ctxKey = "run_id"

// Init creates the service logger writing JSON to stdout and installs it as
// the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	l := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(l)
	return l
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunID stores an analysis run ID in the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID extracts the run ID from context. Returns "" if not set.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey).(string); ok {
		return v
	}
	return ""
}

// NewRunID builds "{symbol}-{unixNano}".
func NewRunID(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, ts.UnixNano())
}

// Attrs returns slog args carrying the run ID, or nil.
// Usage: slog.Info("msg", logger.Attrs(ctx)...)
func Attrs(ctx context.Context) []any {
	id := RunID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("run_id", id)}
}
