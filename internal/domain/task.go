package domain

import "context"

// Task is a unit of background work.
type Task func(ctx context.Context) error

// TaskRunner runs tasks decoupled from the caller.
type TaskRunner interface {
	// Submit enqueues a task and returns without waiting for it to run.
	Submit(ctx context.Context, name string, task Task) error
}
