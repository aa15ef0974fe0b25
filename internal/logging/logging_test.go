package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CODEAGENT_DEBUG", "")
	t.Setenv("CODEAGENT_LOG_LEVEL", "")
	t.Setenv("CODEAGENT_LOG_FILE", "")
	t.Setenv("CODEAGENT_TRACE_DIR", "")

	cfg := ConfigFromEnv()
	if cfg.Level != LevelWarn {
		t.Errorf("expected default level Warn, got %s", cfg.Level)
	}
	if cfg.LogDir != DefaultLogDir {
		t.Errorf("expected log dir %s, got %s", DefaultLogDir, cfg.LogDir)
	}
	if cfg.TraceDir != "" {
		t.Errorf("expected tracing off by default, got %s", cfg.TraceDir)
	}

	t.Setenv("CODEAGENT_DEBUG", "1")
	cfg = ConfigFromEnv()
	if cfg.Level != LevelDebug {
		t.Errorf("expected level Debug when CODEAGENT_DEBUG=1, got %s", cfg.Level)
	}
	if cfg.TraceDir == "" {
		t.Error("expected a trace dir when CODEAGENT_DEBUG=1")
	}

	t.Setenv("CODEAGENT_LOG_LEVEL", "error")
	t.Setenv("CODEAGENT_LOG_FILE", "0")
	t.Setenv("CODEAGENT_TRACE_DIR", "/custom/trace")
	cfg = ConfigFromEnv()
	if cfg.Level != LevelError {
		t.Errorf("expected level Error, got %s", cfg.Level)
	}
	if cfg.LogDir != "" {
		t.Errorf("expected file logging disabled, got %s", cfg.LogDir)
	}
	if cfg.TraceDir != "/custom/trace" {
		t.Errorf("expected custom trace dir, got %s", cfg.TraceDir)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewConsoleWriter(LevelInfo, true)
	cw.SetOutput(&buf)

	cw.Write(LevelDebug, "", "debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at Info level")
	}

	cw.Write(LevelInfo, "index", "info message", F("key", "value"), F("count", 42), F("msg", "two words"))
	out := buf.String()
	for _, want := range []string{"INFO", "[index]", "info message", "key=value", "count=42", `msg="two words"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q should contain %q", out, want)
		}
	}

	cw.SetLevel(LevelDebug)
	buf.Reset()
	cw.Write(LevelDebug, "", "debug after level change")
	if !strings.Contains(buf.String(), "debug after level change") {
		t.Error("debug should be logged after level change")
	}
}

func TestFileWriter(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	fw := NewFileWriter(logDir)
	if err := fw.Write(LevelDebug, "tool", "file message", Path("/tmp/a.py")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	path := fw.GetPath()
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	for _, want := range []string{"Session started", "DEBUG", "[tool] file message", "path=/tmp/a.py", "Session ended"} {
		if !strings.Contains(content, want) {
			t.Errorf("log file should contain %q:\n%s", want, content)
		}
	}

	if target, err := os.Readlink(filepath.Join(logDir, "latest.log")); err != nil || target != filepath.Base(path) {
		t.Errorf("latest.log -> %q (%v), want %q", target, err, filepath.Base(path))
	}
}

func TestFileWriterDisabled(t *testing.T) {
	fw := NewFileWriter("")
	if err := fw.Write(LevelInfo, "", "dropped"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if fw.GetPath() != "" {
		t.Error("disabled writer should not create a file")
	}
}

func TestTracer(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewTracer(dir)
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	if !tr.IsEnabled() {
		t.Fatal("tracer with a dir should be enabled")
	}

	reqID := tr.NewRequestID()
	tr.Event(EventToolStart, ToolName("read_file"))
	tr.EventWithData(EventIndexFile, map[string]any{"chunks": 3}, Path("a.py"))
	path := tr.Path()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSONL line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events (start, tool, index), got %d", len(events))
	}
	if events[1].Event != EventToolStart || events[1].RequestID != reqID {
		t.Errorf("unexpected tool event: %+v", events[1])
	}
	if events[2].Data["path"] != "a.py" || events[2].Data["chunks"] != float64(3) {
		t.Errorf("unexpected index event data: %+v", events[2].Data)
	}
	if events[0].Session == "" || events[0].Session != tr.SessionID() {
		t.Errorf("session id not propagated: %+v", events[0])
	}
}

func TestTracerDisabled(t *testing.T) {
	tr, err := NewTracer("")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	if tr.IsEnabled() {
		t.Error("tracer without dir should be disabled")
	}
	if tr.SessionID() == "" {
		t.Error("session id should be set even when disabled")
	}
	tr.Event(EventToolStart)
	if err := tr.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordQuery(false)
	m.RecordQuery(true)
	m.RecordToolCall("read_file", 10*time.Millisecond, false)
	m.RecordToolCall("read_file", 5*time.Millisecond, true)
	m.RecordToolCall("run_command", time.Millisecond, false)
	m.RecordLLMRequest(100, 20, nil)
	m.RecordLLMRequest(0, 0, errors.New("boom"))
	m.RecordIndexed(4)
	m.RecordSkipped()
	m.RecordRebuild()

	snap := m.Snapshot()
	want := map[string]int{
		"queries_total":       2,
		"queries_exhausted":   1,
		"tool_calls_total":    3,
		"tool_errors_total":   1,
		"llm_requests_total":  2,
		"llm_errors_total":    1,
		"llm_input_tokens":    100,
		"files_indexed":       1,
		"files_skipped":       1,
		"chunks_stored":       4,
		"collection_rebuilds": 1,
	}
	for k, v := range want {
		if snap[k] != v {
			t.Errorf("%s = %v, want %d", k, snap[k], v)
		}
	}

	var nilMetrics *Metrics
	nilMetrics.RecordToolCall("x", 0, false)
}

func TestLoggerPrefixAndNil(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, LevelDebug)
	log.WithPrefix("agent").Info("state", From("PromptSent"), To("AwaitingModel"))

	out := buf.String()
	if !strings.Contains(out, "[agent] state from=PromptSent to=AwaitingModel") {
		t.Errorf("unexpected output %q", out)
	}

	var nilLog *Logger
	nilLog.Info("ignored")
	nilLog.WithPrefix("x").Warn("ignored")
	if nilLog.Metrics() != nil || nilLog.IsDebugEnabled() {
		t.Error("nil logger should report nothing")
	}
}

func TestGlobalLogger(t *testing.T) {
	dir := t.TempDir()
	log, err := Init(Config{Level: LevelError, LogDir: filepath.Join(dir, "logs")})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Global() != log {
		t.Error("Global should return the initialized logger")
	}

	Info("written to file only")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if Global() != nil {
		t.Error("Global should be nil after Close")
	}

	Info("safe after close")
}
