// Package logging provides the structured JSON logger used across the
// trading services. All service diagnostics go through it; I/O problems
// are logged, never fatal.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Entry is the serialized form of one log line.
type Entry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger is a leveled structured logger with component and field context.
type Logger struct {
	mu         sync.Mutex
	output     io.Writer
	level      Level
	component  string
	fields     map[string]interface{}
	jsonFormat bool
}

// Config holds logger configuration.
type Config struct {
	Level      string `json:"level"`  // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"` // "stdout", "stderr", or file path
	Component  string `json:"component"`
	JSONFormat bool   `json:"json_format"`
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a logger with the given configuration.
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	} else if cfg.Output != "" && cfg.Output != "stdout" {
		if f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			output = f
		}
	}

	return &Logger{
		output:     output,
		level:      ParseLevel(cfg.Level),
		component:  cfg.Component,
		jsonFormat: cfg.JSONFormat,
		fields:     make(map[string]interface{}),
	}
}

// Default returns the process-wide default logger.
func Default() *Logger {
	once.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(&Config{Level: "INFO", Output: "stdout", Component: "app", JSONFormat: true})
		}
	})
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// WithComponent returns a copy of the logger scoped to a component name.
func (l *Logger) WithComponent(component string) *Logger {
	nl := l.clone()
	nl.component = component
	return nl
}

// WithField returns a copy of the logger with an extra context field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithFields returns a copy of the logger with extra context fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

// WithError returns a copy of the logger carrying an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	nl := l.clone()
	nl.fields["error"] = err.Error()
	return nl
}

func (l *Logger) clone() *Logger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{
		output:     l.output,
		level:      l.level,
		component:  l.component,
		fields:     fields,
		jsonFormat: l.jsonFormat,
	}
}

// log writes one entry carrying the logger's accumulated field context.
func (l *Logger) log(level Level, msg string) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Component: l.component,
	}

	if len(l.fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(l.fields))
		for k, v := range l.fields {
			entry.Fields[k] = v
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonFormat {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
	} else {
		l.writeText(entry)
	}

	if level == FATAL {
		os.Exit(1)
	}
}

func (l *Logger) writeText(entry Entry) {
	var b strings.Builder
	b.WriteString(entry.Timestamp[:19])
	b.WriteString(fmt.Sprintf(" [%-5s] ", entry.Level))
	if entry.Component != "" {
		b.WriteString("[" + entry.Component + "] ")
	}
	b.WriteString(entry.Message)
	if len(entry.Fields) > 0 {
		b.WriteString(" |")
		for k, v := range entry.Fields {
			b.WriteString(fmt.Sprintf(" %s=%v", k, v))
		}
	}
	fmt.Fprintln(l.output, b.String())
}

// Debug logs at DEBUG level. Context goes through WithField/WithFields.
func (l *Logger) Debug(msg string) { l.log(DEBUG, msg) }

// Info logs at INFO level.
func (l *Logger) Info(msg string) { l.log(INFO, msg) }

// Warn logs at WARN level.
func (l *Logger) Warn(msg string) { l.log(WARN, msg) }

// Error logs at ERROR level.
func (l *Logger) Error(msg string) { l.log(ERROR, msg) }

// Fatal logs at FATAL level and exits the process.
func (l *Logger) Fatal(msg string) { l.log(FATAL, msg) }

// Package-level helpers on the default logger.

func Debug(msg string) { Default().Debug(msg) }
func Info(msg string)  { Default().Info(msg) }
func Warn(msg string)  { Default().Warn(msg) }
func Error(msg string) { Default().Error(msg) }

// WithComponent returns a component-scoped logger off the default.
func WithComponent(component string) *Logger { return Default().WithComponent(component) }

// WithError returns an error-carrying logger off the default.
func WithError(err error) *Logger { return Default().WithError(err) }
