// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured, component-scoped logger used
// throughout netstated: kernel adapter, merger, plugin supervisor, DHCP
// manager, apply engine and daemon front-end all log through it instead
// of the bare stdlib logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Level mirrors charmbracelet/log's levels without exposing that
// dependency's type to callers.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toCharm() charmlog.Level {
	switch l {
	case LevelDebug:
		return charmlog.DebugLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelError:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config controls how a Logger is constructed.
type Config struct {
	Level      Level
	Output     io.Writer
	JSON       bool
	ReportTime bool
}

// DefaultConfig returns the configuration used when nothing else is
// supplied: info level, text formatter, to stderr.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Output:     os.Stderr,
		ReportTime: true,
	}
}

// Logger is a chainable, component-scoped wrapper over charmbracelet/log.
type Logger struct {
	inner *charmlog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := charmlog.Options{
		ReportTimestamp: cfg.ReportTime,
		Level:           cfg.Level.toCharm(),
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}
	return &Logger{inner: charmlog.NewWithOptions(out, opts)}
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns the process-wide default logger, built with
// DefaultConfig on first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(DefaultConfig())
	})
	return defaultLog
}

// SetDefault replaces the process-wide default logger, e.g. after parsing
// a --log-level flag at startup.
func SetDefault(l *Logger) {
	defaultOnce.Do(func() {})
	defaultLog = l
}

// WithComponent is a package-level convenience equivalent to
// Default().WithComponent(name).
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}

// WithComponent returns a child logger tagged with the given component
// name, shown as a "component" field on every entry.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{inner: l.inner.With("component", name)}
}

// WithError returns a child logger carrying err as an "error" field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{inner: l.inner.With("error", err)}
}

// With returns a child logger carrying the given key-value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.inner.Error(msg, kv...) }

// SetTimeFunc overrides the logger's timestamp source, primarily for
// deterministic tests.
func (l *Logger) SetTimeFunc(fn func() time.Time) {
	l.inner.SetTimeFunction(fn)
}
