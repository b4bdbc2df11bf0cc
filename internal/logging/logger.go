package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Format represents the output format for logs
type Format int

const (
	// FormatConsole is human-readable console output
	FormatConsole Format = iota
	// FormatJSON is structured JSON output
	FormatJSON
)

// Level represents a logging level
type Level int

const (
	// DebugLevel is for debug messages
	DebugLevel Level = iota
	// InfoLevel is for informational messages
	InfoLevel
	// WarnLevel is for warning messages
	WarnLevel
	// ErrorLevel is for error messages
	ErrorLevel
)

// String returns the string representation of a Level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides structured logging capabilities.
//
// Logs go to stderr by default: stdout may be one of the relayed channels.
// A nil *Logger is valid and discards everything, so components can hold an
// optional logger without guarding every call.
type Logger struct {
	level  Level
	format Format
	output io.Writer
	fields []Field
}

// New creates a new Logger with the specified level and console format
func New(level Level) *Logger {
	return &Logger{
		level:  level,
		format: FormatConsole,
		output: os.Stderr,
	}
}

// NewWithFormat creates a new Logger with the specified level and format
func NewWithFormat(level Level, format Format) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: os.Stderr,
	}
}

// NewWithOutput creates a new Logger with the specified level and output writer
func NewWithOutput(level Level, output io.Writer) *Logger {
	return &Logger{
		level:  level,
		format: FormatConsole,
		output: output,
	}
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level = level
}

// SetFormat changes the output format
func (l *Logger) SetFormat(format Format) {
	if l == nil {
		return
	}
	l.format = format
}

// Enabled reports whether messages at level would be written
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.level
}

// With returns a child logger that prepends fields to every message.
// The child shares the parent's output, level and format at creation time.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return nil
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{
		level:  l.level,
		format: l.format,
		output: l.output,
		fields: merged,
	}
}

// Debug logs a debug message with optional fields
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an informational message with optional fields
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning message with optional fields
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error message with optional fields
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}

	if len(l.fields) > 0 {
		fields = append(append([]Field(nil), l.fields...), fields...)
	}

	if l.format == FormatJSON {
		l.logJSON(level, msg, fields...)
	} else {
		l.logConsole(level, msg, fields...)
	}
}

// logConsole outputs logs in human-readable console format
func (l *Logger) logConsole(level Level, msg string, fields ...Field) {
	var output strings.Builder
	output.WriteString(time.Now().UTC().Format(time.RFC3339))
	output.WriteString(" ")
	output.WriteString(level.String())
	output.WriteString(" ")
	output.WriteString(msg)

	for _, field := range fields {
		output.WriteString(" ")
		output.WriteString(field.Key)
		output.WriteString("=")
		output.WriteString(fmt.Sprintf("%v", field.Value))
	}

	output.WriteString("\n")

	_, _ = io.WriteString(l.output, output.String())
}

// logJSON outputs logs in JSON format
func (l *Logger) logJSON(level Level, msg string, fields ...Field) {
	logEntry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level.String(),
		"message":   msg,
	}

	for _, field := range fields {
		logEntry[field.Key] = field.Value
	}

	jsonBytes, err := json.Marshal(logEntry)
	if err != nil {
		// Fallback to console output if JSON marshaling fails
		l.logConsole(level, msg, fields...)
		return
	}

	_, _ = fmt.Fprintf(l.output, "%s\n", jsonBytes)
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value any
}

// String creates a Field with a string value
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates a Field with an integer value
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates a Field with an unsigned counter value
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a Field with a boolean value
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a Field rendered as a Go duration string
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Stringer creates a Field from any fmt.Stringer, such as a net.Addr
func Stringer(key string, value fmt.Stringer) Field {
	if value == nil {
		return Field{Key: key, Value: "<nil>"}
	}
	return Field{Key: key, Value: value.String()}
}

// Error creates a Field with an error value
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a Field with any value
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
