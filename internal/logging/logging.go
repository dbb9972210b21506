// Package logging wraps logrus with the field/output conventions used
// across the reference backend this module's ambient stack is grounded on.
package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps *logrus.Logger so call sites can be swapped for a richer
// sink later without touching every call site.
type Logger struct {
	*logrus.Logger
}

// Config controls level/format/output.
type Config struct {
	Level  string
	Format string
}

// New builds a Logger from Config, defaulting to info/text/stdout.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l}
}

// NewDefault builds a Logger with info/text/stdout defaults.
func NewDefault(component string) *Logger {
	l := New(Config{Level: "info", Format: "text"})
	l.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// WithField is a thin convenience wrapper.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}
