// Package logging provides structured, correlation-aware logging for the
// traffic manager, wrapping logrus the way the rest of the fleet does.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iamtahmad1/traffic-manager/internal/correlation"
)

// Logger wraps a *logrus.Logger with a fixed "service" field.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger for service, with level and format ("json" or "text").
func New(service, level, format string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)

	switch strings.ToLower(format) {
	case "text", "console":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	return &Logger{entry: base.WithField("service", service)}
}

// NewFromEnv reads LOG_LEVEL / LOG_FORMAT and builds a Logger for service.
func NewFromEnv(service string) *Logger {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// SetOutput redirects the underlying writer; primarily for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

// WithContext extracts the correlation ID from ctx ("-" when none is bound)
// and attaches it to the returned entry as correlation_id.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	id := correlation.Current(ctx)
	if id == "" {
		id = "-"
	}
	return l.entry.WithField("correlation_id", id)
}

// WithFields returns an entry with extra structured fields, no context.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.entry.WithFields(fields)
}

// WithError returns an entry carrying err.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.entry.WithField("error", err.Error())
}

func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }
func (l *Logger) Fatal(args ...interface{}) { l.entry.Fatal(args...) }

// LogDependencyCall logs a structured record for a call to an external
// dependency (DB, cache, broker, audit store).
func (l *Logger) LogDependencyCall(ctx context.Context, dependency, operation string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"dependency": dependency,
		"operation":  operation,
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("dependency call failed")
		return
	}
	entry.Debug("dependency call succeeded")
}
