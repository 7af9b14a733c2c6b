package domain

import "context"

// AgentRequest is one user turn addressed to a conversation thread.
type AgentRequest struct {
	ThreadID string
	Input    string
	// RecursionLimit bounds the agent's internal reasoning steps. It is
	// interpreted by the agent, not by its callers.
	RecursionLimit int
}

// Agent is the stateful dialogue capability. It owns all cross-turn memory,
// addressed by ThreadID.
//
// Stream writes StreamToken events to out in generation order and returns
// when the turn is complete. It never closes out; the caller does.
type Agent interface {
	Stream(ctx context.Context, req AgentRequest, out chan<- StreamEvent) error
}
