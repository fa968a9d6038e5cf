// Package logging configures zerolog loggers for the client layer.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger scoped to a component. Level is one of "debug",
// "info", "warn", "error", or "disabled"; unknown values fall back to info.
// Format is "console" or "json".
func New(component, level, format string) zerolog.Logger {
	return NewWithWriter(component, level, format, os.Stderr)
}

// NewWithWriter is New with an explicit output writer, used by tests.
func NewWithWriter(component, level, format string, w io.Writer) zerolog.Logger {
	var out io.Writer = w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
