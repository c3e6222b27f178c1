// Package logger provides process-wide leveled logging for studyrag.
//
// The CLI stays quiet unless --verbose is set: warnings and errors are always
// written to stderr, debug and info messages only in verbose mode. Long-running
// commands (serve, worker) switch to JSON output at info level.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	format  = FormatText
	output  io.Writer = os.Stderr
	handler *slog.Logger
)

func init() {
	level.Set(slog.LevelWarn)
	rebuild()
}

// rebuild recreates the handler. Callers hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		handler = slog.New(slog.NewJSONHandler(output, opts))
		return
	}
	handler = slog.New(slog.NewTextHandler(output, opts))
}

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	if v {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelWarn)
}

// IsVerbose returns true if debug messages are written.
func IsVerbose() bool {
	return level.Level() <= slog.LevelDebug
}

// SetLevel sets the minimum level written.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetFormat selects FormatText or FormatJSON.
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	if f != FormatJSON {
		f = FormatText
	}
	format = f
	rebuild()
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Logger returns the underlying structured logger for key-value logging.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return handler
}

func logf(l slog.Level, msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	ctx := context.Background()
	if !handler.Enabled(ctx, l) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	handler.Log(ctx, l, msg)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Info prints an informational message.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	logf(slog.LevelDebug, "=== "+name+" ===")
}
