package agent

// State is a phase of one user request.
type State int

const (
	StateAwaitingUserInput State = iota
	StatePromptSent
	StateAwaitingModel
	StateExecutingTools
	StateFinalAnswer
)

func (s State) String() string {
	switch s {
	case StateAwaitingUserInput:
		return "AwaitingUserInput"
	case StatePromptSent:
		return "PromptSent"
	case StateAwaitingModel:
		return "AwaitingModel"
	case StateExecutingTools:
		return "ExecutingTools"
	case StateFinalAnswer:
		return "FinalAnswer"
	default:
		return "Unknown"
	}
}

// validTransitions lists the states reachable from each state.
// Any state may fall back to AwaitingUserInput when a request aborts.
var validTransitions = map[State][]State{
	StateAwaitingUserInput: {StatePromptSent},
	StatePromptSent:        {StateAwaitingModel},
	StateAwaitingModel:     {StateExecutingTools, StateFinalAnswer},
	StateExecutingTools:    {StateAwaitingModel},
	StateFinalAnswer:       {StateAwaitingUserInput},
}

func canTransition(from, to State) bool {
	if to == StateAwaitingUserInput {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
