// Package observability provides the logging and metrics façade shared by
// every pipeline phase and external service client.
package observability

import (
	"fmt"
	"log"
	"os"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// Logger is the structured logging interface used throughout the service.
// Best-effort pipeline steps log through this rather than returning errors
// to their caller (see internal/index and internal/search).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	WithPrefix(prefix string) Logger
	With(fields map[string]interface{}) Logger
}

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelFatal: 4,
}

// StandardLogger writes leveled, field-annotated lines to stderr.
type StandardLogger struct {
	prefix string
	level  LogLevel
	fields map[string]interface{}
	logger *log.Logger
}

// NewLogger creates the default StandardLogger for the given component
// prefix, at INFO level.
func NewLogger(prefix string) Logger {
	if prefix == "" {
		prefix = "default"
	}
	return &StandardLogger{
		prefix: prefix,
		level:  LogLevelInfo,
		logger: log.New(os.Stderr, "", 0),
	}
}

// WithLevel returns a copy of the logger at the given minimum level.
func (l *StandardLogger) WithLevel(level LogLevel) *StandardLogger {
	return &StandardLogger{prefix: l.prefix, level: level, fields: l.fields, logger: l.logger}
}

func (l *StandardLogger) Debug(msg string, fields map[string]interface{}) {
	l.emit(LogLevelDebug, msg, fields)
}
func (l *StandardLogger) Info(msg string, fields map[string]interface{}) {
	l.emit(LogLevelInfo, msg, fields)
}
func (l *StandardLogger) Warn(msg string, fields map[string]interface{}) {
	l.emit(LogLevelWarn, msg, fields)
}
func (l *StandardLogger) Error(msg string, fields map[string]interface{}) {
	l.emit(LogLevelError, msg, fields)
}
func (l *StandardLogger) Fatal(msg string, fields map[string]interface{}) {
	l.emit(LogLevelFatal, msg, fields)
	os.Exit(1)
}

func (l *StandardLogger) Debugf(format string, args ...interface{}) {
	l.emit(LogLevelDebug, fmt.Sprintf(format, args...), nil)
}
func (l *StandardLogger) Infof(format string, args ...interface{}) {
	l.emit(LogLevelInfo, fmt.Sprintf(format, args...), nil)
}
func (l *StandardLogger) Warnf(format string, args ...interface{}) {
	l.emit(LogLevelWarn, fmt.Sprintf(format, args...), nil)
}
func (l *StandardLogger) Errorf(format string, args ...interface{}) {
	l.emit(LogLevelError, fmt.Sprintf(format, args...), nil)
}

func (l *StandardLogger) WithPrefix(prefix string) Logger {
	return &StandardLogger{prefix: prefix, level: l.level, fields: l.fields, logger: l.logger}
}

func (l *StandardLogger) With(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StandardLogger{prefix: l.prefix, level: l.level, fields: merged, logger: l.logger}
}

func (l *StandardLogger) emit(level LogLevel, msg string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.level] {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	line := fmt.Sprintf("%s [%s] [%s] %s", ts, level, l.prefix, msg)
	for k, v := range l.fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	for k, v := range fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	l.logger.Println(line)
}

// NoopLogger discards everything; used in tests.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]interface{}) {}
func (NoopLogger) Info(string, map[string]interface{})  {}
func (NoopLogger) Warn(string, map[string]interface{})  {}
func (NoopLogger) Error(string, map[string]interface{}) {}
func (NoopLogger) Fatal(string, map[string]interface{}) {}
func (NoopLogger) Debugf(string, ...interface{})        {}
func (NoopLogger) Infof(string, ...interface{})         {}
func (NoopLogger) Warnf(string, ...interface{})         {}
func (NoopLogger) Errorf(string, ...interface{})        {}
func (l NoopLogger) WithPrefix(string) Logger                { return l }
func (l NoopLogger) With(map[string]interface{}) Logger      { return l }

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return NoopLogger{} }
