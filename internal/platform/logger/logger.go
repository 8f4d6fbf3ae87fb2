// Package logger builds the process-wide structured logger. Services receive
// a *slog.Logger by injection; nothing in this repository logs through a
// package-level default.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog logger writing to stdout. The level is taken from
// FIRMO_LOG_LEVEL (debug, info, warn, error); unset or unknown values mean info.
func New() *slog.Logger {
	return NewWithLevel(os.Getenv("FIRMO_LOG_LEVEL"))
}

// NewWithLevel builds a logger at an explicit level string.
func NewWithLevel(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
