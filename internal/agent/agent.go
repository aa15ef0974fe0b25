package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/codeagent/internal/llm"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
	"github.com/abdul-hamid-achik/codeagent/internal/tools"
)

// DefaultMaxIterations caps the tool rounds of one request.
const DefaultMaxIterations = 10

// exhaustedAnswer is the answer used when the cap is hit and the model
// produced no text of its own.
const exhaustedAnswer = "Stopped after %d tool rounds without reaching a final answer."

// Config holds the collaborators of an Agent.
type Config struct {
	LLM     llm.LLMClient
	Tools   *tools.Registry
	Session *tools.Session
	Output  Output

	MaxIterations int
	// Instructions are appended to the system prompt (CODEAGENT.md / AGENTS.md).
	Instructions string

	// Console and Input are only needed by Interactive.
	Console LineWriter
	Input   LineReader

	Log *logging.Logger
}

// Outcome summarizes one request.
type Outcome struct {
	Answer     string
	Iterations int
	ToolCalls  int
	Exhausted  bool
	Usage      llm.Usage
}

// Agent drives the request loop between the model and the tools.
type Agent struct {
	llm           llm.LLMClient
	tools         *tools.Registry
	session       *tools.Session
	output        Output
	maxIterations int
	systemPrompt  string
	definitions   []llm.ToolDefinition

	console LineWriter
	input   LineReader
	log     *logging.Logger

	// mu serializes requests; history and state belong to the running one.
	mu      sync.Mutex
	history []llm.Message
	state   State
}

// New creates an Agent. LLM, Tools and Session are required.
func New(cfg Config) (*Agent, error) {
	if cfg.LLM == nil || cfg.Tools == nil || cfg.Session == nil {
		return nil, fmt.Errorf("agent: LLM, Tools and Session are required")
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	output := cfg.Output
	if output == nil {
		output = NewHeadlessOutput()
	}

	return &Agent{
		llm:           cfg.LLM,
		tools:         cfg.Tools,
		session:       cfg.Session,
		output:        output,
		maxIterations: maxIter,
		systemPrompt:  buildSystemPrompt(cfg.Instructions),
		definitions:   toolDefinitions(cfg.Tools),
		console:       cfg.Console,
		input:         cfg.Input,
		log:           cfg.Log.WithPrefix("agent"),
		state:         StateAwaitingUserInput,
	}, nil
}

func toolDefinitions(r *tools.Registry) []llm.ToolDefinition {
	defs := r.Definitions()
	out := make([]llm.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return out
}

// Run handles one user request. The task is wrapped in the instruction
// template and appended to the conversation; the loop then alternates
// between the model and the tools until the model answers without tool
// calls or the iteration cap is reached. Hitting the cap is not an error:
// the outcome is marked Exhausted. Model errors are returned as errors and
// leave the conversation as it was before the request.
func (a *Agent) Run(ctx context.Context, task string) (*Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reqID := a.log.NewRequestID()
	defer a.log.ClearRequestID()
	start := time.Now()
	a.log.Event(logging.EventAgentQueryStart, logging.RequestID(reqID), logging.Query(task))

	mark := len(a.history)
	a.setState(StatePromptSent)
	a.history = append(a.history, llm.Message{Role: llm.RoleUser, Content: wrapTask(task)})

	outcome := &Outcome{}
	for {
		a.setState(StateAwaitingModel)
		resp, err := a.llm.Chat(ctx, a.history, a.definitions, a.systemPrompt)
		if err != nil {
			a.abort(mark)
			a.log.Error("model request failed", logging.Iteration(outcome.Iterations), logging.Error(err))
			return nil, err
		}
		outcome.Usage.InputTokens += resp.Usage.InputTokens
		outcome.Usage.OutputTokens += resp.Usage.OutputTokens

		if len(resp.ToolCalls) == 0 {
			a.history = append(a.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
			outcome.Answer = resp.Content
			break
		}

		if outcome.Iterations >= a.maxIterations {
			a.exhaust(outcome, resp)
			break
		}

		a.history = append(a.history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		a.setState(StateExecutingTools)
		results, err := a.executeTools(ctx, resp.ToolCalls)
		if err != nil {
			a.abort(mark)
			return nil, err
		}
		a.history = append(a.history, llm.Message{Role: llm.RoleTool, ToolResults: results})
		outcome.Iterations++
		outcome.ToolCalls += len(results)
	}

	a.setState(StateFinalAnswer)
	a.output.Answer(outcome.Answer)
	a.setState(StateAwaitingUserInput)

	a.log.Metrics().RecordQuery(outcome.Exhausted)
	a.log.Event(logging.EventAgentQueryComplete,
		logging.Iteration(outcome.Iterations),
		logging.Count(outcome.ToolCalls),
		logging.InputTokens(int(outcome.Usage.InputTokens)),
		logging.OutputTokens(int(outcome.Usage.OutputTokens)),
		logging.DurationSince(start),
	)
	return outcome, nil
}

// executeTools runs the calls one at a time in the order the model gave
// them. A failing tool becomes an error result; only cancellation stops
// the batch.
func (a *Agent) executeTools(ctx context.Context, calls []llm.ToolCall) ([]llm.ToolResult, error) {
	results := make([]llm.ToolResult, 0, len(calls))
	for _, tc := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		call := tools.Call{ID: tc.ID, Name: tc.Name, Input: tc.Input}
		a.output.ToolCall(call)
		res := a.tools.Dispatch(ctx, a.session, call)
		a.output.ToolResult(call, res)

		results = append(results, llm.ToolResult{
			CallID:  tc.ID,
			Name:    tc.Name,
			Content: res.Text(),
			IsError: res.Failed(),
		})
	}
	return results, nil
}

// exhaust ends a request that asked for more tool rounds than allowed.
// The pending calls are answered with error results so the conversation
// stays well formed for the next request.
func (a *Agent) exhaust(outcome *Outcome, resp *llm.Response) {
	outcome.Exhausted = true
	outcome.Answer = resp.Content
	if outcome.Answer == "" {
		outcome.Answer = fmt.Sprintf(exhaustedAnswer, a.maxIterations)
	}

	skipped := make([]llm.ToolResult, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		skipped = append(skipped, llm.ToolResult{
			CallID:  tc.ID,
			Name:    tc.Name,
			Content: fmt.Sprintf("Error executing %s: iteration limit of %d reached, call not executed", tc.Name, a.maxIterations),
			IsError: true,
		})
	}
	a.history = append(a.history,
		llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls},
		llm.Message{Role: llm.RoleTool, ToolResults: skipped},
		llm.Message{Role: llm.RoleAssistant, Content: outcome.Answer},
	)

	msg := fmt.Sprintf("reached the limit of %d tool rounds; stopping", a.maxIterations)
	a.output.Warning(msg)
	a.log.Warn(msg, logging.Iteration(outcome.Iterations), logging.Count(len(resp.ToolCalls)))
	a.log.Event(logging.EventAgentExhausted, logging.Iteration(outcome.Iterations))
}

// abort drops the messages of a failed request.
func (a *Agent) abort(mark int) {
	a.history = a.history[:mark]
	a.setState(StateAwaitingUserInput)
}

func (a *Agent) setState(to State) {
	from := a.state
	if from == to {
		return
	}
	if !canTransition(from, to) {
		a.log.Warn("unexpected state transition", logging.From(from.String()), logging.To(to.String()))
	}
	a.state = to
	a.log.Debug("state", logging.From(from.String()), logging.To(to.String()))
	a.log.Event(logging.EventAgentState, logging.From(from.String()), logging.To(to.String()))
}

// State returns the current phase.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Reset clears the conversation.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// History returns a copy of the conversation.
func (a *Agent) History() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Session returns the tool session the agent runs in.
func (a *Agent) Session() *tools.Session {
	return a.session
}
