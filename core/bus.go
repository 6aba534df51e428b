package core

import "context"

// Bus is the message transport shared by all agents. Implementations must
// preserve FIFO order per recipient and be safe for concurrent Deliver from
// multiple producers with a single Drain/Receive consumer per recipient.
//
// Delivery is in-process, at-most-once and fire-and-forget: a message sitting
// in a queue when the process exits is lost. There is no ordering guarantee
// across different recipients. A distributed deployment would substitute a
// durable transport behind this same contract.
type Bus interface {
	// Register makes agentID a known recipient with an empty queue.
	// Registering an existing id is a no-op.
	Register(agentID string)

	// Deliver appends the message to its recipient's queue, preserving
	// arrival order. Unknown recipients are registered implicitly.
	Deliver(msg Message) error

	// Drain returns and removes all currently queued messages for the agent,
	// in delivery order. It never blocks; an empty queue yields an empty
	// slice.
	Drain(agentID string) []Message

	// Receive blocks until at least one message is queued for the agent (or
	// ctx is done), then drains and returns the queue. FIFO order is
	// preserved. Returns ctx.Err() on cancellation.
	Receive(ctx context.Context, agentID string) ([]Message, error)
}
