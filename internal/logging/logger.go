// Package logging provides structured logging with secret redaction for the
// authentication engine and the hivectl tool.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry.
type LogLevel string

// Log severity levels.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for log entries.
type LogFormat string

// Log output formats.
const (
	// FormatJSON outputs one JSON object per line.
	FormatJSON LogFormat = "json"
	// FormatHuman outputs "[time] level: message k=v" lines.
	FormatHuman LogFormat = "human"
)

var levelRank = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel validates a level name.
func ParseLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(s))
	if _, ok := levelRank[level]; !ok {
		return "", fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
	return level, nil
}

// ParseFormat validates a format name.
func ParseFormat(s string) (LogFormat, error) {
	switch f := LogFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatHuman:
		return f, nil
	}
	return "", fmt.Errorf("invalid log format %q: must be json or human", s)
}

// sink is shared by a logger and every child created with With.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

// Logger provides structured logging with secret redaction.
// A nil *Logger discards everything.
type Logger struct {
	level    LogLevel
	format   LogFormat
	redactor *Redactor
	sink     *sink
	fields   map[string]any
	now      func() time.Time
}

// logEntry represents a single log entry in JSON format.
type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates a Logger writing to stderr.
func New(level LogLevel, format LogFormat) *Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(level LogLevel, format LogFormat, w io.Writer) *Logger {
	return &Logger{
		level:    level,
		format:   format,
		redactor: NewRedactor(),
		sink:     &sink{out: w},
		now:      time.Now,
	}
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}
	child := *l
	child.fields = mergeFields(l.fields, fields)
	return &child
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(LevelDebug, msg, fields)
}

// Info logs an info-level message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs a warn-level message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(LevelWarn, msg, fields)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(LevelError, msg, fields)
}

func (l *Logger) log(level LogLevel, msg string, fields []map[string]any) {
	if l == nil || levelRank[level] < levelRank[l.level] {
		return
	}

	entry := logEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   msg,
		Fields:    l.redactor.RedactFields(mergeFields(append([]map[string]any{l.fields}, fields...)...)),
	}

	var line string
	if l.format == FormatJSON {
		line = formatJSON(entry)
	} else {
		line = formatHuman(entry)
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = io.WriteString(l.sink.out, line)
}

func formatJSON(entry logEntry) string {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"timestamp":%q,"level":"error","message":"failed to marshal log entry: %s"}`+"\n",
			entry.Timestamp, err.Error())
	}
	return string(data) + "\n"
}

func formatHuman(entry logEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", entry.Timestamp, entry.Level, entry.Message)

	for _, k := range slices.Sorted(maps.Keys(entry.Fields)) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}

	b.WriteString("\n")
	return b.String()
}

// mergeFields merges field maps, later maps winning. Returns nil when empty.
func mergeFields(fields ...map[string]any) map[string]any {
	var merged map[string]any
	for _, f := range fields {
		if len(f) == 0 {
			continue
		}
		if merged == nil {
			merged = make(map[string]any)
		}
		maps.Copy(merged, f)
	}
	return merged
}
