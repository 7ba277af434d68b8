// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides the small leveled logging contract used across the
// pe and loader packages. It intentionally looks like
// github.com/saferwall/pe/log, whose call sites (Errorf/Warnf/Debugf,
// NewFilter/FilterLevel, NewHelper) pin down the shape this package
// reproduces, since the upstream package's own source was not available to
// vendor directly.
package log

import (
	"fmt"
	stdlog "log"
	"os"
)

// Level represents a logging severity.
type Level int

// Severity levels, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Logger is the minimal sink every log call eventually reaches.
type Logger interface {
	Log(level Level, msg string) error
}

// stdLogger writes formatted lines to an io.Writer through the standard
// library logger.
type stdLogger struct {
	std *stdlog.Logger
}

// NewStdLogger returns a Logger backed by the standard library's log.Logger.
func NewStdLogger(w *os.File) Logger {
	return &stdLogger{std: stdlog.New(w, "", stdlog.LstdFlags)}
}

func (s *stdLogger) Log(level Level, msg string) error {
	s.std.Printf("[%s] %s", level, msg)
	return nil
}

// FilterOption configures a filtering Logger returned by NewFilter.
type FilterOption func(*filter)

// FilterLevel drops any log call below the given level.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) {
		f.level = level
	}
}

type filter struct {
	next  Logger
	level Level
}

// NewFilter wraps a Logger, discarding calls below the configured level.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &filter{next: next, level: LevelDebug}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, msg string) error {
	if level < f.level {
		return nil
	}
	return f.next.Log(level, msg)
}

// Helper adds printf-style convenience methods on top of a Logger. A nil
// *Helper is valid and silently discards every call, matching how both the
// pe and loader packages treat an unset logger as a no-op rather than a
// configuration error.
type Helper struct {
	logger Logger
}

// NewHelper wraps a Logger with printf-style convenience methods.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, fmt.Sprintf(format, args...))
}

// Debugf logs at debug level.
func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }

// Infof logs at info level.
func (h *Helper) Infof(format string, args ...interface{}) { h.log(LevelInfo, format, args...) }

// Warnf logs at warn level.
func (h *Helper) Warnf(format string, args ...interface{}) { h.log(LevelWarn, format, args...) }

// Errorf logs at error level.
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }

// Warn logs a single warn-level message.
func (h *Helper) Warn(msg string) { h.log(LevelWarn, "%s", msg) }

// Debug logs a single debug-level message.
func (h *Helper) Debug(msg string) { h.log(LevelDebug, "%s", msg) }

// Info logs a single info-level message.
func (h *Helper) Info(msg string) { h.log(LevelInfo, "%s", msg) }

// Error logs a single error-level message.
func (h *Helper) Error(msg string) { h.log(LevelError, "%s", msg) }
