package domain

import "context"

// Provider is a streaming chat model endpoint.
type Provider interface {
	Name() string
	ChatStream(ctx context.Context, req ChatRequest, out chan<- StreamEvent) error
	Healthy(ctx context.Context) error
}

// StreamEventType classifies a streaming event.
type StreamEventType string

const (
	StreamToken StreamEventType = "token"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is a single incremental event from a provider or an agent.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"` // token text or error message
}

type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}
