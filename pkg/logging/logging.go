// Package logging provides the structured, leveled logging sink shared by all
// memcore components. Emission is best-effort: a failing writer never fails
// or panics the caller, the failure is reported once on a secondary channel.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asecn/memcore/pkg/color"
	"github.com/asecn/memcore/pkg/errclass"
)

// Level represents a log level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	case LevelFatal:
		return 4
	default:
		return 1
	}
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelWarn, "warning":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	case LevelFatal:
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Format selects the line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Sink receives log calls from store components. Implementations must not
// block for long and must never panic.
type Sink interface {
	Log(level Level, source, msg string, details map[string]any, err error)
}

// Logger provides structured logging.
type Logger struct {
	mu        *sync.Mutex
	level     Level
	format    Format
	output    io.Writer
	errOutput io.Writer
	errorLog  io.Writer
	fields    map[string]any
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     Level          `json:"level"`
	Source    string         `json:"source,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Error     *ErrorInfo     `json:"error,omitempty"`
}

// ErrorInfo describes an error attached to a log entry.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewLogger creates a new JSON logger with the specified level writing to stderr.
func NewLogger(level Level) *Logger {
	return &Logger{
		mu:        &sync.Mutex{},
		level:     level,
		format:    FormatJSON,
		output:    os.Stderr,
		errOutput: os.Stderr,
		fields:    make(map[string]any),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := NewLogger(LevelFatal)
	l.output = io.Discard
	l.errOutput = io.Discard
	return l
}

// WithFields returns a new logger with additional fields. The new logger
// shares writers and lock with its parent.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	newFields := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		mu:        l.mu,
		level:     l.level,
		format:    l.format,
		output:    l.output,
		errOutput: l.errOutput,
		errorLog:  l.errorLog,
		fields:    newFields,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.emit(LevelDebug, "", msg, merge(fields), nil)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.emit(LevelInfo, "", msg, merge(fields), nil)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.emit(LevelWarn, "", msg, merge(fields), nil)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.emit(LevelError, "", msg, merge(fields), nil)
}

// ErrorErr logs an error message with an error value.
func (l *Logger) ErrorErr(msg string, err error, fields ...map[string]any) {
	l.emit(LevelError, "", msg, merge(fields), err)
}

// Fatal logs at fatal level. It does not exit the process.
func (l *Logger) Fatal(msg string, err error, fields ...map[string]any) {
	l.emit(LevelFatal, "", msg, merge(fields), err)
}

// Log implements Sink.
func (l *Logger) Log(level Level, source, msg string, details map[string]any, err error) {
	l.emit(level, source, msg, details, err)
}

func (l *Logger) emit(level Level, source, msg string, details map[string]any, err error) {
	defer func() {
		// A misbehaving writer must not take the caller down.
		if r := recover(); r != nil {
			l.reportFailure(fmt.Errorf("panic while logging: %v", r))
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	if level.rank() < l.level.rank() {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Source:    source,
		Message:   msg,
		Fields:    make(map[string]any),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for k, v := range details {
		entry.Fields[k] = v
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}
	if err != nil {
		entry.Error = &ErrorInfo{Code: errclass.Code(err), Message: err.Error()}
	}

	var line []byte
	if l.format == FormatText {
		line = []byte(formatText(entry))
	} else {
		data, mErr := json.Marshal(entry)
		if mErr != nil {
			data = []byte(fmt.Sprintf(`{"level":"error","message":"failed to marshal log entry: %s"}`, strings.ReplaceAll(mErr.Error(), `"`, `'`)))
		}
		line = append(data, '\n')
	}

	if _, wErr := l.output.Write(line); wErr != nil {
		l.reportFailureLocked(fmt.Errorf("write log entry: %w", wErr))
	}

	if l.errorLog != nil && level.rank() >= LevelError.rank() {
		if _, wErr := io.WriteString(l.errorLog, errorLogLine(entry)); wErr != nil {
			l.reportFailureLocked(fmt.Errorf("write error log: %w", wErr))
		}
	}
}

func (l *Logger) reportFailure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reportFailureLocked(err)
}

func (l *Logger) reportFailureLocked(err error) {
	if l.errOutput == nil {
		return
	}
	fmt.Fprintf(l.errOutput, "memcore: logging failed: %v\n", err)
}

func formatText(e LogEntry) string {
	var b strings.Builder
	b.WriteString(color.Dim("[" + e.Timestamp + "]"))
	b.WriteString(" ")
	b.WriteString(levelLabel(e.Level))
	b.WriteString(" ")
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := json.Marshal(e.Fields[k])
			if err != nil {
				v = []byte(fmt.Sprintf("%v", e.Fields[k]))
			}
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
	}
	if e.Error != nil {
		fmt.Fprintf(&b, " error=%q", e.Error.Message)
	}
	b.WriteString("\n")
	return b.String()
}

func levelLabel(level Level) string {
	label := "[" + strings.ToUpper(string(level)) + "]"
	switch level {
	case LevelDebug:
		return color.Cyanf(label)
	case LevelInfo:
		return color.Greenf(label)
	case LevelWarn:
		return color.Yellowf(label)
	case LevelError:
		return color.Redf(label)
	case LevelFatal:
		return color.Magentaf(label)
	}
	return label
}

func errorLogLine(e LogEntry) string {
	line := fmt.Sprintf("[%s] %s - %s: %s\n", e.Timestamp, strings.ToUpper(string(e.Level)), sourceOr(e.Source), e.Message)
	if e.Error != nil {
		line += fmt.Sprintf("Error: %s\n", e.Error.Message)
	}
	return line + "\n"
}

func sourceOr(s string) string {
	if s == "" {
		return "system"
	}
	return s
}

func merge(fields []map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return fields[0]
	}
	out := make(map[string]any)
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetErrorOutput sets the secondary channel that receives logging failures.
func (l *Logger) SetErrorOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errOutput = w
}

// SetErrorLog sets an additional writer that receives error and fatal entries
// in a plain, human-readable form.
func (l *Logger) SetErrorLog(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog = w
}

// SetLevel sets the log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetFormat sets the line encoding.
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
}

var (
	globalMu sync.RWMutex
	global   = NewLogger(LevelInfo)
)

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// Global returns the global logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Debug logs to the global logger.
func Debug(msg string, fields ...map[string]any) {
	Global().Debug(msg, fields...)
}

// Info logs to the global logger.
func Info(msg string, fields ...map[string]any) {
	Global().Info(msg, fields...)
}

// Warn logs to the global logger.
func Warn(msg string, fields ...map[string]any) {
	Global().Warn(msg, fields...)
}

// Error logs to the global logger.
func Error(msg string, fields ...map[string]any) {
	Global().Error(msg, fields...)
}

// ErrorErr logs to the global logger with an error.
func ErrorErr(msg string, err error, fields ...map[string]any) {
	Global().ErrorErr(msg, err, fields...)
}

// WithFields returns a new logger from global with additional fields.
func WithFields(fields map[string]any) *Logger {
	return Global().WithFields(fields)
}
