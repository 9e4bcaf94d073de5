// Package logging builds the process-wide slog logger from settings.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel converts a level name (debug, info, warn, error) to a
// slog.Level. Matching is case-insensitive.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", level)
	}
}

// New returns a logger writing to w in the given format at the given level.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", FormatText:
		handler = slog.NewTextHandler(w, opts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	return slog.New(handler), nil
}

// Component scopes l to a named component.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}
