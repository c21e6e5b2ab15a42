// Package logger provides the slog-based logging used by the xtype CLI
// and server. The codec itself never logs; it reports errors.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds a logger for the given format ("text", "json" or "pretty")
// at the given level. Unknown formats fall back to text.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts))
	case "pretty":
		return slog.New(NewPrettyHandler(w, level))
	default:
		return slog.New(slog.NewTextHandler(w, opts))
	}
}

// Default returns a text logger on stderr at info level.
func Default() *slog.Logger {
	return New(os.Stderr, "text", slog.LevelInfo)
}

// ParseLevel converts a config string to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
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
