// Package logging provides the structured logger used across codeagent.
// It supports console output, session log files, and JSONL event tracing.
package logging

import (
	"os"
	"strings"
)

// Level represents log severity levels.
type Level int

const (
	// LevelDebug logs everything, including verbose debugging information.
	LevelDebug Level = iota
	// LevelInfo logs informational messages and above.
	LevelInfo
	// LevelWarn logs warnings and errors only.
	LevelWarn
	// LevelError logs only error messages.
	LevelError
)

// String returns the string representation of a log level.
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
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level for console output.
	Level Level

	// LogDir is the directory for session log files. Empty disables file logging.
	LogDir string

	// TraceDir receives JSONL event traces. Empty disables tracing.
	TraceDir string

	// NoColor disables level colouring on the console.
	NoColor bool
}

// DefaultLogDir is the default directory for session logs (relative to cwd).
const DefaultLogDir = ".codeagent/logs"

// ConfigFromEnv creates a Config from environment variables.
//
// Environment variables:
//   - CODEAGENT_DEBUG: "1" sets debug level and enables tracing to /tmp/codeagent-trace
//   - CODEAGENT_LOG_LEVEL: console level (debug, info, warn, error)
//   - CODEAGENT_LOG_FILE: "0" disables the session log file
//   - CODEAGENT_TRACE_DIR: override the trace directory
//   - NO_COLOR: disables colour
func ConfigFromEnv() Config {
	cfg := Config{
		Level:  LevelWarn,
		LogDir: DefaultLogDir,
	}

	if os.Getenv("CODEAGENT_DEBUG") == "1" {
		cfg.Level = LevelDebug
		cfg.TraceDir = "/tmp/codeagent-trace"
	}
	if level := os.Getenv("CODEAGENT_LOG_LEVEL"); level != "" {
		cfg.Level = ParseLevel(level)
	}
	if os.Getenv("CODEAGENT_LOG_FILE") == "0" {
		cfg.LogDir = ""
	}
	if dir := os.Getenv("CODEAGENT_TRACE_DIR"); dir != "" {
		cfg.TraceDir = dir
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.NoColor = true
	}

	return cfg
}

// WithLevel returns a copy of the config with the specified level.
func (c Config) WithLevel(level Level) Config {
	c.Level = level
	return c
}
