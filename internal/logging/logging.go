// Package logging provides the structured logger used across codeagent.
//
// The logger has three output channels:
//   - Console (stderr): human-readable lines, filtered by level
//   - File (.codeagent/logs/): session logs, always captures all levels
//   - Tracer (JSONL): structured events, only active when a trace dir is set
//
// Every method is safe on a nil *Logger, so components can take an optional
// logger without guarding each call.
//
// Usage:
//
//	log, err := logging.Init(logging.ConfigFromEnv())
//	if err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	log.Info("indexing", logging.Path(dir))
//	log.Event(logging.EventToolStart, logging.ToolName("read_file"))
package logging

import (
	"io"
	"sync"
)

// Logger is the main logging type.
type Logger struct {
	console *ConsoleWriter
	file    *FileWriter
	tracer  *Tracer
	metrics *Metrics

	// Component prefix, e.g. "agent", "llm", "index"
	prefix string
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Init initializes the global logger with the given configuration.
func Init(cfg Config) (*Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
	return logger, nil
}

// New creates a new Logger instance.
func New(cfg Config) (*Logger, error) {
	tracer, err := NewTracer(cfg.TraceDir)
	if err != nil {
		return nil, err
	}

	return &Logger{
		console: NewConsoleWriter(cfg.Level, cfg.NoColor),
		file:    NewFileWriter(cfg.LogDir),
		tracer:  tracer,
		metrics: NewMetrics(),
	}, nil
}

// NewWriter creates a console-only logger writing to w, used by tests and
// by commands that must keep stdout clean.
func NewWriter(w io.Writer, level Level) *Logger {
	console := NewConsoleWriter(level, true)
	console.SetOutput(w)
	tracer, _ := NewTracer("")
	return &Logger{
		console: console,
		file:    NewFileWriter(""),
		tracer:  tracer,
		metrics: NewMetrics(),
	}
}

// Global returns the global logger instance, or nil before Init.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// WithPrefix returns a logger sharing all writers with the given prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l == nil {
		return nil
	}
	c := *l
	c.prefix = prefix
	return &c
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.console.Write(level, l.prefix, msg, fields...)
	_ = l.file.Write(level, l.prefix, msg, fields...)
}

// Event logs a structured event to the tracer.
func (l *Logger) Event(eventType string, fields ...Field) {
	if l == nil {
		return
	}
	l.tracer.Event(eventType, fields...)
}

// NewRequestID starts a new request correlation id for subsequent events.
func (l *Logger) NewRequestID() string {
	if l == nil {
		return ""
	}
	return l.tracer.NewRequestID()
}

// ClearRequestID clears the current request correlation id.
func (l *Logger) ClearRequestID() {
	if l == nil {
		return
	}
	l.tracer.ClearRequestID()
}

// Metrics returns the metrics collector; nil for a nil logger.
func (l *Logger) Metrics() *Metrics {
	if l == nil {
		return nil
	}
	return l.metrics
}

// SessionID returns the session correlation id.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.tracer.SessionID()
}

// IsDebugEnabled returns true if debug logging reaches the console.
func (l *Logger) IsDebugEnabled() bool {
	if l == nil {
		return false
	}
	return l.console.Enabled(LevelDebug)
}

// SetLevel sets the console log level.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.console.SetLevel(level)
}

// Close flushes the session summary and closes every writer.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	summary := l.metrics.Snapshot()
	l.tracer.EventWithData(EventSessionEnd, summary)
	_ = l.file.Write(LevelInfo, "session", "summary", F("tool_calls", summary["tool_calls_total"]),
		F("llm_requests", summary["llm_requests_total"]), F("files_indexed", summary["files_indexed"]))

	var first error
	if err := l.file.Close(); err != nil {
		first = err
	}
	if err := l.tracer.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Debug logs a debug message to the global logger.
func Debug(msg string, fields ...Field) {
	Global().Debug(msg, fields...)
}

// Info logs an informational message to the global logger.
func Info(msg string, fields ...Field) {
	Global().Info(msg, fields...)
}

// Warn logs a warning message to the global logger.
func Warn(msg string, fields ...Field) {
	Global().Warn(msg, fields...)
}

// LogError logs an error message to the global logger.
func LogError(msg string, fields ...Field) {
	Global().Error(msg, fields...)
}

// Close closes the global logger.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		return nil
	}
	err := globalLogger.Close()
	globalLogger = nil
	return err
}
