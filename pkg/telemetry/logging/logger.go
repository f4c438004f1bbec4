package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat represents the output format for log entries.
type LogFormat string

// Supported log formats.
const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config holds logger configuration.
type Config struct {
	Level     string    // debug, info, warn, error (default: info)
	Format    string    // json, text (default: json)
	AddSource bool      // include source file:line in entries
	Writer    io.Writer // output destination (default: os.Stderr)
}

// Logger wraps slog.Logger with redaction of private key material.
// All string attribute values pass through the redactor before being
// written, so a PEM key accidentally included in a log field never
// reaches the output.
type Logger struct {
	*slog.Logger
	level  slog.Level
	format LogFormat
}

// New creates a Logger from the given configuration.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(NewRedactingHandler(handler)),
		level:  level,
		format: format,
	}, nil
}

// SetDefault installs the logger as the process-wide slog default, so
// packages that log through slog.Default() share its level, format,
// and redaction.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *slog.Logger {
	return l.Logger.With("component", name)
}

// Level returns the configured minimum level.
func (l *Logger) Level() slog.Level {
	return l.level
}

// Component returns a child of the default logger tagged with a
// component name. Packages use this at construction time so every
// entry they emit carries the component attribute.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

func parseFormat(s string) (LogFormat, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid log format: %s", s)
	}
}
