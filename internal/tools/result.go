package tools

import "fmt"

// ErrorKind classifies a tool failure.
type ErrorKind string

const (
	KindUnknownTool  ErrorKind = "unknown_tool"
	KindInvalidInput ErrorKind = "invalid_input"
	KindIO           ErrorKind = "io"
	KindExecution    ErrorKind = "execution"
	KindDenied       ErrorKind = "denied"
)

// ToolError is the failure half of a Result.
type ToolError struct {
	Kind    ErrorKind
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

// Result is the outcome of one call: Output on success, Err on failure.
type Result struct {
	Name   string
	CallID string
	Output string
	Err    *ToolError
}

// Failed reports whether the call failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Text renders the result as it is shown to the model.
func (r Result) Text() string {
	if r.Err != nil {
		return fmt.Sprintf("Error executing %s: %s", r.Name, r.Err.Message)
	}
	return r.Output
}
