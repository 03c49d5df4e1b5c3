package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process JSON logger on stdout and installs it as the
// slog default, so packages that fall back to slog.Default share it.
func NewLogger(level string) *slog.Logger {
	l := NewLoggerTo(os.Stdout, level)
	slog.SetDefault(l)
	return l
}

func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("service", "fleet-dashboard")
}

func levelFromString(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
