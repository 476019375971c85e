// Package logging builds the slog logger shared by the engines and the CLI.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New creates a text slog.Logger writing to w at the given level.
// A nil writer yields a logger that discards everything.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		return Discard()
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	return slog.New(handler)
}

// NewJSON is New with a JSON handler, for log shippers.
func NewJSON(level string, w io.Writer) *slog.Logger {
	if w == nil {
		return Discard()
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: levelFromString(level),
	}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(discardHandler)
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning", "":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
