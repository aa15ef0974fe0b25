// Package permissions decides whether the agent may run a tool call,
// prompting the user when the mode requires it.
package permissions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
	"github.com/abdul-hamid-achik/codeagent/internal/tools"
)

// Mode defines the permission checking mode
type Mode int

const (
	ModeAsk    Mode = iota // Prompt for write/execute, auto-approve reads
	ModeAuto               // Approve everything automatically
	ModeStrict             // Prompt for everything including reads
)

func (m Mode) String() string {
	switch m {
	case ModeAsk:
		return config.PermissionAsk
	case ModeAuto:
		return config.PermissionAuto
	case ModeStrict:
		return config.PermissionStrict
	default:
		return "unknown"
	}
}

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case config.PermissionAsk:
		return ModeAsk, nil
	case config.PermissionAuto, "":
		return ModeAuto, nil
	case config.PermissionStrict:
		return ModeStrict, nil
	default:
		return ModeAuto, fmt.Errorf("unknown permission mode %q", s)
	}
}

// Decision represents a permission decision
type Decision int

const (
	DecisionAllow       Decision = iota // Allow this time
	DecisionAlwaysAllow                 // Always allow this tool
	DecisionDeny                        // Deny this time
	DecisionNeverAllow                  // Never allow this tool
)

// InputHandler interface for getting user input
type InputHandler interface {
	ReadLine(prompt string) (string, error)
}

// OutputHandler interface for displaying output
type OutputHandler interface {
	PermissionPrompt(toolName string, level tools.PermissionLevel, description string)
}

// Policy manages permission checking. It implements tools.Approver.
type Policy struct {
	mode    Mode
	modeMu  sync.RWMutex
	input   InputHandler
	output  OutputHandler
	log     *logging.Logger
	cache   map[string]Decision
	cacheMu sync.RWMutex
	// promptMu serializes prompts so answers cannot interleave.
	promptMu sync.Mutex
}

var _ tools.Approver = (*Policy)(nil)

// NewPolicy creates a new permission policy
func NewPolicy(mode Mode, input InputHandler, output OutputHandler, log *logging.Logger) *Policy {
	return &Policy{
		mode:   mode,
		input:  input,
		output: output,
		log:    log.WithPrefix("permissions"),
		cache:  make(map[string]Decision),
	}
}

// Approve implements tools.Approver.
func (p *Policy) Approve(ctx context.Context, call tools.Call, level tools.PermissionLevel) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := p.Check(call.Name, level, Describe(call))
	if err == nil && !ok {
		p.log.Info("tool call denied", logging.ToolName(call.Name), logging.F("level", level.String()))
	}
	return ok, err
}

// Check checks if a tool execution is allowed
func (p *Policy) Check(toolName string, level tools.PermissionLevel, description string) (bool, error) {
	mode := p.GetMode()
	if mode == ModeAuto {
		return true, nil
	}

	if decision, ok := p.GetCachedDecision(toolName); ok {
		switch decision {
		case DecisionAlwaysAllow:
			return true, nil
		case DecisionNeverAllow:
			return false, nil
		}
	}

	if mode == ModeAsk && level == tools.PermissionRead {
		return true, nil
	}

	if p.input == nil || p.output == nil {
		// Nobody to ask
		return false, nil
	}
	return p.promptUser(toolName, level, description)
}

// promptUser asks the user for permission
func (p *Policy) promptUser(toolName string, level tools.PermissionLevel, description string) (bool, error) {
	p.promptMu.Lock()
	defer p.promptMu.Unlock()

	p.output.PermissionPrompt(toolName, level, description)

	response, err := p.input.ReadLine("[y]es / [n]o / [a]lways / ne[v]er: ")
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true, nil
	case "a", "always":
		p.remember(toolName, DecisionAlwaysAllow)
		return true, nil
	case "v", "never":
		p.remember(toolName, DecisionNeverAllow)
		return false, nil
	default:
		// "n", "no" and anything unrecognized
		return false, nil
	}
}

func (p *Policy) remember(toolName string, d Decision) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache[toolName] = d
}

// GetMode returns the current permission mode
func (p *Policy) GetMode() Mode {
	p.modeMu.RLock()
	defer p.modeMu.RUnlock()
	return p.mode
}

// SetMode changes the permission mode
func (p *Policy) SetMode(mode Mode) {
	p.modeMu.Lock()
	defer p.modeMu.Unlock()
	p.mode = mode
}

// ClearCache clears all cached decisions
func (p *Policy) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache = make(map[string]Decision)
}

// GetCachedDecision returns a cached decision if it exists
func (p *Policy) GetCachedDecision(toolName string) (Decision, bool) {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	decision, ok := p.cache[toolName]
	return decision, ok
}

// Describe summarizes a call's arguments for a prompt, e.g.
// `command="rm -rf build"`.
func Describe(call tools.Call) string {
	keys := make([]string, 0, len(call.Input))
	for k := range call.Input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprint(call.Input[k])
		if len(v) > 120 {
			v = v[:117] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	return strings.Join(parts, " ")
}
