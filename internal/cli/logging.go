package cli

import (
	"io"
	"log/slog"
)

// NewLogger returns a JSON logger for servers and a text logger for
// interactive commands.
func NewLogger(w io.Writer, jsonFormat bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LevelFor returns slog.LevelDebug when debug is set and base otherwise.
func LevelFor(debug bool, base slog.Level) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return base
}
