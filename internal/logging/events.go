package logging

// Event names written to JSONL traces.
const (
	EventSessionStart = "session.start"
	EventSessionEnd   = "session.end"

	EventAgentState         = "agent.state"
	EventAgentQueryStart    = "agent.query.start"
	EventAgentQueryComplete = "agent.query.complete"
	EventAgentExhausted     = "agent.exhausted"

	EventLLMRequest  = "llm.request"
	EventLLMResponse = "llm.response"
	EventLLMError    = "llm.error"

	EventToolStart    = "tool.start"
	EventToolComplete = "tool.complete"
	EventToolError    = "tool.error"

	EventIndexFile    = "index.file"
	EventIndexSkip    = "index.skip"
	EventIndexRebuild = "index.rebuild"
	EventIndexQuery   = "index.query"
)
