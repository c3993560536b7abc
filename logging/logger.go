// Package logging provides structured logging configuration using log/slog.
//
// Components in this SDK take an explicit *slog.Logger rather than relying
// on an ambient module-level logger; this package builds those loggers and
// optionally installs one as the process default.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a logger writing to stdout with the given level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" in production for machine parsing, "text" during development.
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Setup builds a logger via New and installs it as the slog default.
func Setup(level, format string) {
	slog.SetDefault(New(level, format))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Or returns logger, or the process default when logger is nil. Components
// use this so a zero-value construction still logs somewhere sensible.
func Or(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
