package logging

import (
	"time"
)

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// SessionID creates a session ID field.
func SessionID(id string) Field {
	return F("session_id", id)
}

// RequestID creates a request ID field.
func RequestID(id string) Field {
	return F("request_id", id)
}

// ToolName creates a tool name field.
func ToolName(name string) Field {
	return F("tool", name)
}

// Duration creates a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return F("duration_ms", d.Milliseconds())
}

// DurationSince creates a duration field from a start time.
func DurationSince(start time.Time) Field {
	return Duration(time.Since(start))
}

// InputTokens creates an input token count field.
func InputTokens(count int) Field {
	return F("input_tokens", count)
}

// OutputTokens creates an output token count field.
func OutputTokens(count int) Field {
	return F("output_tokens", count)
}

// Model creates a model name field.
func Model(name string) Field {
	return F("model", name)
}

// Query creates a query field, truncating if too long.
func Query(q string) Field {
	if len(q) > 200 {
		q = q[:197] + "..."
	}
	return F("query", q)
}

// Path creates a file path field.
func Path(p string) Field {
	return F("path", p)
}

// Error creates an error field.
func Error(err error) Field {
	if err == nil {
		return F("error", nil)
	}
	return F("error", err.Error())
}

// Count creates a count field.
func Count(n int) Field {
	return F("count", n)
}

// From creates a "from" field for state transitions.
func From(value string) Field {
	return F("from", value)
}

// To creates a "to" field for state transitions.
func To(value string) Field {
	return F("to", value)
}

// Iteration creates an iteration count field.
func Iteration(n int) Field {
	return F("iteration", n)
}

// Collection creates a vector collection field.
func Collection(name string) Field {
	return F("collection", name)
}

// Dim creates an embedding dimension field.
func Dim(n int) Field {
	return F("dim", n)
}

// Chunks creates a chunk count field.
func Chunks(n int) Field {
	return F("chunks", n)
}

func fieldsToMap(fields []Field) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}
