package domain

import (
	"context"
	"time"
)

// ThreadStore persists per-thread conversation history for the agent.
type ThreadStore interface {
	EnsureThread(ctx context.Context, id string) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	DeleteThread(ctx context.Context, id string) error

	AddMessage(ctx context.Context, threadID string, msg MessageRecord) error
	GetMessages(ctx context.Context, threadID string, limit int) ([]MessageRecord, error)

	Close() error
}

type Thread struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageRecord struct {
	ID        int64     `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
