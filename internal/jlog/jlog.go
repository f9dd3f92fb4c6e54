// Package jlog is the structured logger threaded through the orchestrator
// and every component it calls, the same way context.go's Ctx is built
// once and passed by reference rather than read off a global.
package jlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a *logrus.Logger. WithFields returns a field-based entry;
// Infof, Warnf, Errorf and Debugf log a printf-formatted message, which is
// what the orchestrator's call sites use.
type Logger struct {
	l *logrus.Logger
}

// New returns a Logger writing to w at level, text-formatted for a human
// terminal. JSON output (for the audit collaborator's machine-readable
// mode) is selected with NewJSON.
func New(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{l: l}
}

// NewJSON returns a Logger emitting one JSON object per line, for
// machine-readable consumers.
func NewJSON(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{l: l}
}

// Default returns a text Logger at Info level writing to stderr, the
// level the orchestrator runs at absent a verbosity flag.
func Default() *Logger {
	return New(os.Stderr, logrus.InfoLevel)
}

// WithFields returns an entry pre-populated with fields, for a call site
// that will log more than once about the same package (e.g. the
// download-then-link pipeline logging start and finish for a name).
func (lg *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return lg.l.WithFields(logrus.Fields(fields))
}

func (lg *Logger) Infof(format string, args ...interface{})  { lg.l.Infof(format, args...) }
func (lg *Logger) Warnf(format string, args ...interface{})  { lg.l.Warnf(format, args...) }
func (lg *Logger) Errorf(format string, args ...interface{}) { lg.l.Errorf(format, args...) }
func (lg *Logger) Debugf(format string, args ...interface{}) { lg.l.Debugf(format, args...) }
