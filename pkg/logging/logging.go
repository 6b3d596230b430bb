// Package logging configures the process-wide slog logger from the
// logging section of the configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rhuss/tutogate/pkg/config"
)

// Setup builds a logger writing to stderr, installs it as the slog default
// and returns it.
func Setup(cfg config.LoggingConfig) *slog.Logger {
	logger := New(os.Stderr, cfg.Level, cfg.Format)
	slog.SetDefault(logger)
	return logger
}

// New returns a text or JSON logger at the given level. Unknown formats
// fall back to text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level string to a slog.Level. Unknown values map
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
