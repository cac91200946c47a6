// ABOUTME: Structured logging configuration using log/slog.
// ABOUTME: Provides Init() to configure the default logger with level, format and output.

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler. Zero values mean info level, text format, stderr.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// Init configures the default slog logger.
// Level: debug, info, warn, error (default: info)
// Format: text, json (default: text)
func Init(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(o.Level),
	}

	var handler slog.Handler
	if strings.ToLower(o.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// FromEnv reads STOREFRONT_LOG_LEVEL and STOREFRONT_LOG_FORMAT
func FromEnv() Options {
	return Options{
		Level:  os.Getenv("STOREFRONT_LOG_LEVEL"),
		Format: os.Getenv("STOREFRONT_LOG_FORMAT"),
	}
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
