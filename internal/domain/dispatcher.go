package domain

import "context"

// ReplyDispatcher delivers a structured reply to a recipient. Delivery is
// best effort: failures are logged by the implementation and never returned.
type ReplyDispatcher interface {
	Dispatch(ctx context.Context, recipient string, reply Reply)
}
