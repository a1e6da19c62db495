package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logger shared by every service mode.
// Records are JSON lines carrying service, hostname and action fields.
type Logger interface {
	Action(action string) Logger
	With(args ...any) Logger
	WithGroup(name string) Logger

	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)
}

type logger struct {
	l      *slog.Logger
	action string
}

// New returns a JSON logger writing to stdout at the given level
// (DEBUG, INFO, WARN or ERROR, case insensitive).
func New(level string) (Logger, error) {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})

	hostname, _ := os.Hostname()
	return &logger{l: slog.New(h).With("hostname", hostname)}, nil
}

// Discard drops every record.
func Discard() Logger {
	return &logger{l: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", level)
	}
}

func (lg *logger) Action(action string) Logger {
	return &logger{l: lg.l, action: action}
}

func (lg *logger) With(args ...any) Logger {
	return &logger{l: lg.l.With(args...), action: lg.action}
}

func (lg *logger) WithGroup(name string) Logger {
	return &logger{l: lg.l.WithGroup(name), action: lg.action}
}

func (lg *logger) Debug(msg string, args ...any) {
	lg.log(slog.LevelDebug, msg, args)
}

func (lg *logger) Info(msg string, args ...any) {
	lg.log(slog.LevelInfo, msg, args)
}

func (lg *logger) Warn(msg string, args ...any) {
	lg.log(slog.LevelWarn, msg, args)
}

func (lg *logger) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append([]any{"error", err.Error()}, args...)
	}
	lg.log(slog.LevelError, msg, args)
}

func (lg *logger) log(level slog.Level, msg string, args []any) {
	if lg.action != "" {
		args = append([]any{"action", lg.action}, args...)
	}
	lg.l.Log(context.Background(), level, msg, args...)
}
