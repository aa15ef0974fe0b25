package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a structured trace event for JSONL output.
type Event struct {
	Timestamp string         `json:"ts"`
	Event     string         `json:"event"`
	Session   string         `json:"session"`
	RequestID string         `json:"request_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Tracer writes structured events to a JSONL file.
// A tracer created with an empty directory is inactive.
type Tracer struct {
	mu        sync.Mutex
	sessionID string
	requestID string
	file      *os.File
	path      string
}

// NewTracer creates a tracer writing to dir. The session id is always set
// so log lines can be correlated even when tracing is off.
func NewTracer(dir string) (*Tracer, error) {
	t := &Tracer{sessionID: uuid.NewString()}
	if dir == "" {
		return t, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("session_%s.jsonl", time.Now().Format("2006-01-02_15-04-05")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	t.file = file
	t.path = path

	latest := filepath.Join(dir, "latest.jsonl")
	_ = os.Remove(latest)
	_ = os.Symlink(path, latest)

	t.write(EventSessionStart, map[string]any{"trace_dir": dir})
	return t, nil
}

// IsEnabled returns whether tracing is active.
func (t *Tracer) IsEnabled() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file != nil
}

// SessionID returns the session correlation id.
func (t *Tracer) SessionID() string {
	if t == nil {
		return ""
	}
	return t.sessionID
}

// NewRequestID generates and sets a new request correlation ID.
func (t *Tracer) NewRequestID() string {
	id := uuid.NewString()
	if t != nil {
		t.mu.Lock()
		t.requestID = id
		t.mu.Unlock()
	}
	return id
}

// ClearRequestID clears the current request correlation ID.
func (t *Tracer) ClearRequestID() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.requestID = ""
	t.mu.Unlock()
}

// Event logs a structured event.
func (t *Tracer) Event(eventType string, fields ...Field) {
	if t == nil {
		return
	}
	t.write(eventType, fieldsToMap(fields))
}

// EventWithData logs a structured event with additional data.
func (t *Tracer) EventWithData(eventType string, data map[string]any, fields ...Field) {
	if t == nil {
		return
	}
	merged := make(map[string]any, len(data)+len(fields))
	for k, v := range data {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	t.write(eventType, merged)
}

func (t *Tracer) write(eventType string, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return
	}

	line, err := json.Marshal(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Event:     eventType,
		Session:   t.sessionID,
		RequestID: t.requestID,
		Data:      data,
	})
	if err != nil {
		return
	}
	_, _ = t.file.Write(append(line, '\n'))
}

// Path returns the trace file path, or "" when inactive.
func (t *Tracer) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Close closes the trace file.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
