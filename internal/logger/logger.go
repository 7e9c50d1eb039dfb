// Package logger wraps logrus with the field layout used across casebot.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a structured logger bound to a component name.
type Logger struct {
	entry *logrus.Entry
}

// Init configures the global logrus output. level is a logrus level name
// ("debug", "info", ...); format is "json" or "text".
func Init(level, format string, out io.Writer) error {
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	switch strings.ToLower(format) {
	case "", "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	if out == nil {
		out = os.Stderr
	}
	logrus.SetOutput(out)
	logrus.SetLevel(lvl)
	return nil
}

// New creates a Logger tagged with the given component.
func New(component string) *Logger {
	return &Logger{entry: logrus.WithField("component", component)}
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(l)}
}

// WithField returns a copy of l with one extra field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a copy of l with extra fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithError returns a copy of l carrying err.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(message string) { l.entry.Debug(message) }

func (l *Logger) Info(message string) { l.entry.Info(message) }

func (l *Logger) Warn(message string) { l.entry.Warn(message) }

func (l *Logger) Error(message string) { l.entry.Error(message) }
