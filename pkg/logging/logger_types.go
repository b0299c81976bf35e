package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level represents a log level
type Level int

const (
	// DebugLevel carries per-message traffic: every frame sent and received
	DebugLevel Level = iota
	// InfoLevel covers session lifecycle: handshakes, negotiated versions, closes
	InfoLevel
	// WarnLevel is for dropped messages and degraded peers
	WarnLevel
	// ErrorLevel is for sessions torn down by a fault
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// String returns the string representation of a log level
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a string to a Level. Unknown names fall back to
// InfoLevel; use UnmarshalText when a typo should be an error.
func ParseLevel(s string) Level {
	l, err := lookupLevel(s)
	if err != nil {
		return InfoLevel
	}
	return l
}

func lookupLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel, nil
	case "INFO":
		return InfoLevel, nil
	case "WARN", "WARNING":
		return WarnLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// MarshalText lets levels appear by name in YAML and JSON config.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a level name, rejecting unknown names.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := lookupLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With creates a child logger with the given fields pre-set
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
	// Enabled reports whether level would be written. Hot paths check
	// it before building fields.
	Enabled(level Level) bool
}

// JSONLogger implements Logger with one JSON object per line.
// Children created by With share the parent's writer lock and level, so
// lines never interleave and SetLevel affects the whole tree.
type JSONLogger struct {
	out    *sink
	fields []Field
}

// sink is the state shared by a logger and its children.
type sink struct {
	mu     sync.Mutex
	writer io.Writer
	level  Level
	now    func() time.Time
}

// LogEntry represents a single log entry in JSON format
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger is a logger that does nothing (useful for testing)
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (n NopLogger) With(fields ...Field) Logger     { return n }
func (NopLogger) SetLevel(level Level)              {}
func (NopLogger) GetLevel() Level                   { return ErrorLevel + 1 }
func (NopLogger) Enabled(Level) bool                { return false }

// NewNopLogger creates a logger that discards all output
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation measures a session phase such as a handshake.
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
