package structlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
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
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type ctxKeyCorrID struct{}

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger emits one JSON object per line with correlation ID support.
type Logger struct {
	service   string
	level     Level
	output    io.Writer
	mu        sync.Mutex
	fields    Fields // base fields for all logs
	sanitizer *Sanitizer
}

// Sanitizer masks sensitive data in logs
type Sanitizer struct {
	maskPatterns []string
}

// NewSanitizer creates a log sanitizer tuned for payment data.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		maskPatterns: []string{
			"password",
			"secret",
			"token",
			"apikey",
			"card_number",
			"pan",
			"cvv",
			"ssn",
			"authorization",
		},
	}
}

// Sanitize masks sensitive fields
func (s *Sanitizer) Sanitize(fields Fields) Fields {
	cleaned := make(Fields, len(fields))
	for k, v := range fields {
		masked := false
		lk := strings.ToLower(k)
		for _, pattern := range s.maskPatterns {
			if strings.Contains(lk, pattern) {
				cleaned[k] = "MASKED"
				masked = true
				break
			}
		}
		if !masked {
			cleaned[k] = v
		}
	}
	return cleaned
}

// NewLogger creates a structured logger for a service
func NewLogger(serviceName string, level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		service:   serviceName,
		level:     level,
		output:    output,
		fields:    Fields{},
		sanitizer: NewSanitizer(),
	}
}

// WithFields returns a logger with additional base fields
func (l *Logger) WithFields(fields Fields) *Logger {
	newLogger := &Logger{
		service:   l.service,
		level:     l.level,
		output:    l.output,
		sanitizer: l.sanitizer,
		fields:    make(Fields, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		newLogger.fields[k] = v
	}
	for k, v := range fields {
		newLogger.fields[k] = v
	}
	return newLogger
}

// WithContext extracts correlation ID from context and adds to logger
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if corrID := GetCorrelationID(ctx); corrID != "" {
		return l.WithFields(Fields{"correlation_id": corrID})
	}
	return l
}

// Debug logs debug message
func (l *Logger) Debug(message string, fields Fields) {
	l.log(LevelDebug, message, fields)
}

// Info logs info message
func (l *Logger) Info(message string, fields Fields) {
	l.log(LevelInfo, message, fields)
}

// Warn logs warning message
func (l *Logger) Warn(message string, fields Fields) {
	l.log(LevelWarn, message, fields)
}

// Error logs error message
func (l *Logger) Error(message string, fields Fields) {
	l.log(LevelError, message, fields)
}

// Fatal logs fatal message and exits
func (l *Logger) Fatal(message string, fields Fields) {
	l.log(LevelFatal, message, fields)
	os.Exit(1)
}

// Critical logs an error-level entry flagged for operator follow-up. Used for
// events that must never pass unnoticed, such as a fraud record lost after
// exhausted persistence retries.
func (l *Logger) Critical(message string, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["event_type"] = "critical"
	l.log(LevelError, fmt.Sprintf("CRITICAL: %s", message), fields)
}

// log is the core logging function
func (l *Logger) log(level Level, message string, fields Fields) {
	if level < l.level {
		return
	}

	allFields := make(Fields, len(l.fields)+len(fields)+5)
	for k, v := range l.fields {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}

	allFields["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	allFields["level"] = level.String()
	allFields["service"] = l.service
	allFields["message"] = message

	// Add caller info for errors
	if level >= LevelError {
		if pc, file, line, ok := runtime.Caller(2); ok {
			allFields["caller"] = fmt.Sprintf("%s:%d", file, line)
			if fn := runtime.FuncForPC(pc); fn != nil {
				allFields["function"] = fn.Name()
			}
		}
	}

	allFields = l.sanitizer.Sanitize(allFields)

	l.mu.Lock()
	defer l.mu.Unlock()

	encoder := json.NewEncoder(l.output)
	if err := encoder.Encode(allFields); err != nil {
		fmt.Fprintf(os.Stderr, "LOG_ERROR: failed to encode log: %v\n", err)
	}
}

// SetLevel changes log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Correlation ID helpers

// NewCorrelationID generates a new correlation ID
func NewCorrelationID() string {
	return uuid.NewString()
}

// ContextWithCorrelationID returns context with correlation ID
func ContextWithCorrelationID(ctx context.Context, corrID string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrID{}, corrID)
}

// GetCorrelationID extracts correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if corrID, ok := ctx.Value(ctxKeyCorrID{}).(string); ok {
		return corrID
	}
	return ""
}

// Global logger instance (can be replaced)
var defaultLogger = NewLogger("fraudwatch", LevelInfo, os.Stdout)

// Package-level convenience functions

func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

func Error(message string, fields Fields) {
	defaultLogger.Error(message, fields)
}

func Fatal(message string, fields Fields) {
	defaultLogger.Fatal(message, fields)
}

// SetDefaultLogger replaces the global logger
func SetDefaultLogger(logger *Logger) {
	defaultLogger = logger
}
