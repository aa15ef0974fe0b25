package logging

import (
	"sync"
	"time"
)

// ToolMetrics tracks metrics for a single tool.
type ToolMetrics struct {
	Calls     int           `json:"calls"`
	Errors    int           `json:"errors"`
	TotalTime time.Duration `json:"total_time_ms"`
}

// LLMMetrics tracks metrics for model calls.
type LLMMetrics struct {
	Requests     int `json:"requests"`
	Errors       int `json:"errors"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// IndexMetrics tracks indexing work.
type IndexMetrics struct {
	FilesIndexed int `json:"files_indexed"`
	FilesSkipped int `json:"files_skipped"`
	Chunks       int `json:"chunks"`
	Rebuilds     int `json:"rebuilds"`
}

// Metrics collects runtime metrics for a session.
type Metrics struct {
	mu sync.Mutex

	SessionStart time.Time               `json:"session_start"`
	Queries      int                     `json:"queries"`
	Exhausted    int                     `json:"exhausted"`
	Tools        map[string]*ToolMetrics `json:"tools"`
	LLM          LLMMetrics              `json:"llm"`
	Index        IndexMetrics            `json:"index"`
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionStart: time.Now(),
		Tools:        make(map[string]*ToolMetrics),
	}
}

// RecordQuery counts one user request; exhausted marks a request that hit
// the tool-round cap.
func (m *Metrics) RecordQuery(exhausted bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries++
	if exhausted {
		m.Exhausted++
	}
}

// RecordToolCall records a tool call.
func (m *Metrics) RecordToolCall(name string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tool := m.Tools[name]
	if tool == nil {
		tool = &ToolMetrics{}
		m.Tools[name] = tool
	}
	tool.Calls++
	tool.TotalTime += duration
	if failed {
		tool.Errors++
	}
}

// RecordLLMRequest records a model request.
func (m *Metrics) RecordLLMRequest(inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LLM.Requests++
	m.LLM.InputTokens += inputTokens
	m.LLM.OutputTokens += outputTokens
	if err != nil {
		m.LLM.Errors++
	}
}

// RecordIndexed records one indexed file and its chunk count.
func (m *Metrics) RecordIndexed(chunks int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Index.FilesIndexed++
	m.Index.Chunks += chunks
}

// RecordSkipped records a file the indexer skipped.
func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Index.FilesSkipped++
}

// RecordRebuild records a collection rebuild after a dimension change.
func (m *Metrics) RecordRebuild() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Index.Rebuilds++
}

// Snapshot returns the metrics flattened for serialization.
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	calls, errs := 0, 0
	var toolTime time.Duration
	for _, t := range m.Tools {
		calls += t.Calls
		errs += t.Errors
		toolTime += t.TotalTime
	}

	return map[string]any{
		"session_duration_ms": time.Since(m.SessionStart).Milliseconds(),
		"queries_total":       m.Queries,
		"queries_exhausted":   m.Exhausted,
		"tool_calls_total":    calls,
		"tool_errors_total":   errs,
		"tool_time_total_ms":  toolTime.Milliseconds(),
		"llm_requests_total":  m.LLM.Requests,
		"llm_errors_total":    m.LLM.Errors,
		"llm_input_tokens":    m.LLM.InputTokens,
		"llm_output_tokens":   m.LLM.OutputTokens,
		"files_indexed":       m.Index.FilesIndexed,
		"files_skipped":       m.Index.FilesSkipped,
		"chunks_stored":       m.Index.Chunks,
		"collection_rebuilds": m.Index.Rebuilds,
	}
}
