// Package bus contains Bus implementations. The in-memory bus is the default
// transport for single-process deployments; a durable transport can be
// substituted behind the same core.Bus contract.
package bus

import (
	"context"
	"sync"

	"github.com/inkmesh/inkmesh/core"
)

// queue is the per-recipient mailbox. The notify channel carries at most one
// pending wakeup; Receive re-checks the slice after every wakeup so lost
// signals cannot strand a consumer with queued messages.
type queue struct {
	msgs   []core.Message
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

// InMemoryBus is a volatile core.Bus implementation storing per-recipient
// FIFO queues in a process local map. It is safe for concurrent Deliver from
// many producers with one Drain/Receive consumer per recipient.
//
// Messages are process-lifetime only: anything queued when the process exits
// is lost. At-most-once, no acknowledgment, no redelivery.
type InMemoryBus struct {
	mu     sync.RWMutex
	queues map[string]*queue
}

var _ core.Bus = (*InMemoryBus)(nil)

// NewInMemoryBus constructs an empty in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{queues: make(map[string]*queue)}
}

// Register makes agentID a known recipient. Registering twice is a no-op and
// never clears an existing queue.
func (b *InMemoryBus) Register(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queueLocked(agentID)
}

// queueLocked returns the recipient's queue, creating it lazily. Caller must
// hold the write lock.
func (b *InMemoryBus) queueLocked(agentID string) *queue {
	q, ok := b.queues[agentID]
	if !ok {
		q = newQueue()
		b.queues[agentID] = q
	}
	return q
}

// Deliver appends the message to its recipient's queue in arrival order and
// wakes a blocked Receive. Unknown senders and recipients are registered
// implicitly, matching the fire-and-forget contract.
func (b *InMemoryBus) Deliver(msg core.Message) error {
	b.mu.Lock()
	b.queueLocked(msg.Sender)
	q := b.queueLocked(msg.Recipient)
	q.msgs = append(q.msgs, msg)
	b.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default: // wakeup already pending
	}
	return nil
}

// Drain returns and removes all queued messages for the agent in FIFO order.
// It never blocks; an unknown or empty queue yields an empty slice.
func (b *InMemoryBus) Drain(agentID string) []core.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queueLocked(agentID)
	msgs := q.msgs
	q.msgs = nil
	if msgs == nil {
		return []core.Message{}
	}
	return msgs
}

// Receive blocks until at least one message is queued for the agent, then
// drains and returns the queue. Cancellation of ctx returns ctx.Err().
func (b *InMemoryBus) Receive(ctx context.Context, agentID string) ([]core.Message, error) {
	b.mu.Lock()
	q := b.queueLocked(agentID)
	b.mu.Unlock()

	for {
		if msgs := b.Drain(agentID); len(msgs) > 0 {
			return msgs, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of messages currently queued for the agent.
func (b *InMemoryBus) Len(agentID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.queues[agentID]
	if !ok {
		return 0
	}
	return len(q.msgs)
}
