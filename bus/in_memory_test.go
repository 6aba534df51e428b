package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmesh/inkmesh/core"
)

func task(sender, recipient, kind string) core.Message {
	return core.NewTask(sender, recipient, kind, nil, nil)
}

func TestDrainPreservesFIFOOrder(t *testing.T) {
	b := NewInMemoryBus()
	b.Register("outline")

	a := task("maestro", "outline", "a")
	bb := task("maestro", "outline", "b")
	c := task("maestro", "outline", "c")
	require.NoError(t, b.Deliver(a))
	require.NoError(t, b.Deliver(bb))
	require.NoError(t, b.Deliver(c))

	msgs := b.Drain("outline")
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{a.ID, bb.ID, c.ID}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestDrainEmptiesQueue(t *testing.T) {
	b := NewInMemoryBus()
	require.NoError(t, b.Deliver(task("x", "y", "k")))

	assert.Len(t, b.Drain("y"), 1)
	assert.Empty(t, b.Drain("y"))
}

func TestDrainUnknownRecipientIsEmpty(t *testing.T) {
	b := NewInMemoryBus()
	assert.Empty(t, b.Drain("nobody"))
}

func TestDeliverAutoRegisters(t *testing.T) {
	b := NewInMemoryBus()
	require.NoError(t, b.Deliver(task("new-sender", "new-recipient", "k")))
	assert.Equal(t, 1, b.Len("new-recipient"))
	assert.Equal(t, 0, b.Len("new-sender"))
}

func TestQueuesAreIsolated(t *testing.T) {
	b := NewInMemoryBus()
	require.NoError(t, b.Deliver(task("m", "outline", "k")))
	require.NoError(t, b.Deliver(task("m", "narrative", "k")))

	assert.Len(t, b.Drain("outline"), 1)
	assert.Len(t, b.Drain("narrative"), 1)
}

func TestReceiveReturnsQueuedImmediately(t *testing.T) {
	b := NewInMemoryBus()
	require.NoError(t, b.Deliver(task("m", "outline", "k")))

	msgs, err := b.Receive(context.Background(), "outline")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestReceiveBlocksUntilDelivery(t *testing.T) {
	b := NewInMemoryBus()
	b.Register("outline")

	got := make(chan []core.Message, 1)
	go func() {
		msgs, err := b.Receive(context.Background(), "outline")
		if err == nil {
			got <- msgs
		}
	}()

	// Give the receiver a moment to block, then deliver.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Deliver(task("m", "outline", "k")))

	select {
	case msgs := <-got:
		assert.Len(t, msgs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive never woke up")
	}
}

func TestReceiveHonorsContextCancellation(t *testing.T) {
	b := NewInMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := b.Receive(ctx, "outline")
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive ignored cancellation")
	}
}

func TestConcurrentDeliverSingleConsumer(t *testing.T) {
	b := NewInMemoryBus()
	b.Register("outline")

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				_ = b.Deliver(task("p", "outline", "k"))
			}
		}()
	}
	wg.Wait()

	total := 0
	for total < producers*perProducer {
		msgs := b.Drain("outline")
		total += len(msgs)
	}
	assert.Equal(t, producers*perProducer, total)
	assert.Equal(t, 0, b.Len("outline"))
}
