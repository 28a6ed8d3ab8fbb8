package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger writing to w. The level comes
// from GREENBOARD_LOG_LEVEL; GREENBOARD_DEBUG=true forces debug.
func NewLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if lvl := os.Getenv("GREENBOARD_LOG_LEVEL"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	if os.Getenv("GREENBOARD_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler)
}
