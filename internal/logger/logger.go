// Package logger creates the structured logger used by the commands.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format is the output format of a logger.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name, case insensitive.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q, want %q or %q", s, FormatText, FormatJSON)
	}
}

// ParseLevel parses a level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return l, nil
}

// New creates a logger that writes to w.
func New(w io.Writer, f Format, l slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: l,
	}

	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
