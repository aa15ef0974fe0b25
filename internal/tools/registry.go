package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

// PermissionLevel defines the level of permission required for a tool
type PermissionLevel int

const (
	PermissionRead    PermissionLevel = 0 // Read-only operations
	PermissionWrite   PermissionLevel = 1 // Index modifications
	PermissionExecute PermissionLevel = 2 // Shell execution
)

func (p PermissionLevel) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionExecute:
		return "execute"
	default:
		return "unknown"
	}
}

// Tool defines the interface all tools must implement
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Permission() PermissionLevel
	Execute(ctx context.Context, s *Session, input map[string]any) (string, error)
}

// Definition is the tool metadata handed to the model.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Call is one tool invocation requested by the model.
type Call struct {
	ID    string
	Name  string
	Input map[string]any
}

// Approver decides whether a call may run. It is consulted before every
// tool execution with the tool's permission level.
type Approver interface {
	Approve(ctx context.Context, call Call, level PermissionLevel) (bool, error)
}

// Registry manages available tools
type Registry struct {
	tools    map[string]Tool
	order    []string
	approver Approver
	log      *logging.Logger
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry. log may be nil.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   log.WithPrefix("tools"),
	}
}

// Register adds a tool, replacing any tool of the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[tool.Name()]; !ok {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// SetApprover installs the permission gate; nil approves everything.
func (r *Registry) SetApprover(a Approver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approver = a
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Definitions returns tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, Definition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return defs
}

// Dispatch runs call and converts every failure, including a panic, into
// a failed Result. It never returns an error to the caller.
func (r *Registry) Dispatch(ctx context.Context, s *Session, call Call) (res Result) {
	res = Result{Name: call.Name, CallID: call.ID}

	tool, ok := r.Get(call.Name)
	if !ok {
		res.Err = &ToolError{Kind: KindUnknownTool, Message: apperr.ToolNotFound(call.Name).Message}
		r.log.Warn("unknown tool requested", logging.ToolName(call.Name))
		return res
	}
	if err := validateInput(tool.InputSchema(), call.Input); err != nil {
		res.Err = classify(err)
		return res
	}
	if err := r.approve(ctx, call, tool.Permission()); err != nil {
		res.Err = classify(err)
		return res
	}

	start := time.Now()
	r.log.Event(logging.EventToolStart, logging.ToolName(call.Name), logging.F("input", call.Input))
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("tool panicked", logging.ToolName(call.Name),
				logging.F("panic", fmt.Sprint(p)), logging.F("stack", string(debug.Stack())))
			res.Output = ""
			res.Err = &ToolError{Kind: KindExecution, Message: fmt.Sprintf("panic: %v", p)}
		}
		r.log.Metrics().RecordToolCall(call.Name, time.Since(start), res.Failed())
		if res.Failed() {
			r.log.Event(logging.EventToolError, logging.ToolName(call.Name),
				logging.DurationSince(start), logging.F("error", res.Err.Message))
		} else {
			r.log.Event(logging.EventToolComplete, logging.ToolName(call.Name),
				logging.DurationSince(start), logging.F("output_len", len(res.Output)))
		}
	}()

	out, err := tool.Execute(ctx, s, call.Input)
	if err != nil {
		res.Err = classify(err)
		return res
	}
	res.Output = out
	return res
}

func (r *Registry) approve(ctx context.Context, call Call, level PermissionLevel) error {
	r.mu.RLock()
	a := r.approver
	r.mu.RUnlock()
	if a == nil {
		return nil
	}
	ok, err := a.Approve(ctx, call, level)
	if err != nil {
		return &ToolError{Kind: KindDenied, Message: fmt.Sprintf("permission check failed: %v", err)}
	}
	if !ok {
		return &ToolError{Kind: KindDenied, Message: "permission denied by user"}
	}
	return nil
}

// classify maps an error returned by a tool to a ToolError.
func classify(err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	if apperr.HasCode(err, apperr.CodeToolInvalidInput) {
		return &ToolError{Kind: KindInvalidInput, Message: apperr.GetUserMessage(err)}
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &ToolError{Kind: KindIO, Message: err.Error()}
	}
	return &ToolError{Kind: KindExecution, Message: apperr.GetUserMessage(err)}
}
