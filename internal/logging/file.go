package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWriter writes log messages to a session log file.
// It always logs all levels regardless of console settings.
type FileWriter struct {
	mu       sync.Mutex
	file     *os.File
	logDir   string
	logPath  string
	initOnce sync.Once
	initErr  error
}

// NewFileWriter creates a new file writer. The file is only created on
// first write; an empty logDir makes every write a no-op.
func NewFileWriter(logDir string) *FileWriter {
	return &FileWriter{logDir: logDir}
}

func (f *FileWriter) init() error {
	f.initOnce.Do(func() {
		f.initErr = f.open()
	})
	return f.initErr
}

func (f *FileWriter) open() error {
	if f.logDir == "" {
		return nil
	}

	logDir, err := filepath.Abs(f.logDir)
	if err != nil {
		return fmt.Errorf("resolve log directory: %w", err)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	now := time.Now()
	logPath := filepath.Join(logDir, fmt.Sprintf("session_%s.log", now.Format("2006-01-02_15-04-05")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}

	f.mu.Lock()
	f.file = file
	f.logPath = logPath
	f.mu.Unlock()

	cwd, _ := os.Getwd()
	_, _ = fmt.Fprintf(file, "=== Session started at %s ===\n", now.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(file, "Working directory: %s\n---\n", cwd)

	latestPath := filepath.Join(logDir, "latest.log")
	_ = os.Remove(latestPath)
	_ = os.Symlink(filepath.Base(logPath), latestPath)

	return nil
}

// Write appends a log line to the session file.
func (f *FileWriter) Write(level Level, prefix, msg string, fields ...Field) error {
	if err := f.init(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	_, err := f.file.WriteString(formatLine(time.Now(), fmt.Sprintf("%-5s", level.String()), prefix, msg, fields))
	return err
}

// GetPath returns the path to the current log file, or "" before the first write.
func (f *FileWriter) GetPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logPath
}

// Close closes the file writer.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(f.file, "---\n=== Session ended at %s ===\n", time.Now().Format("2006-01-02 15:04:05"))
	err := f.file.Close()
	f.file = nil
	return err
}
