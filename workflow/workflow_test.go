package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmesh/inkmesh/bus"
	"github.com/inkmesh/inkmesh/core"
)

func newManager(t *testing.T) (*Manager, *bus.InMemoryBus) {
	t.Helper()
	b := bus.NewInMemoryBus()
	return NewManager(b), b
}

func TestCreateBookActivatesFirstPhase(t *testing.T) {
	m, _ := newManager(t)
	id := m.CreateBook(map[string]any{"title": "Voyage"})

	book, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, DefaultPhases[0], book.CurrentPhase)
	assert.Equal(t, PhaseStatusActive, book.Phases[0].Status)
	for _, p := range book.Phases[1:] {
		assert.Equal(t, PhaseStatusPending, p.Status)
	}
}

func TestAdvanceRejectedWhileActive(t *testing.T) {
	m, _ := newManager(t)
	id := m.CreateBook(nil)

	err := m.Advance(id)
	assert.ErrorIs(t, err, ErrPhaseNotCompleted)

	// No state change on rejection.
	book, _ := m.Get(id)
	assert.Equal(t, DefaultPhases[0], book.CurrentPhase)
}

func TestAdvanceActivatesExactlyNextPhase(t *testing.T) {
	m, _ := newManager(t)
	id := m.CreateBook(nil)

	require.NoError(t, m.CompletePhase(id))
	require.NoError(t, m.Advance(id))

	book, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, DefaultPhases[1], book.CurrentPhase)
	assert.Equal(t, PhaseStatusCompleted, book.Phases[0].Status)
	assert.Equal(t, PhaseStatusActive, book.Phases[1].Status)

	// Invariant: at most one phase active.
	active := 0
	for _, p := range book.Phases {
		if p.Status == PhaseStatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestAdvanceNeverPassesTerminalPhase(t *testing.T) {
	m, _ := newManager(t)
	id := m.CreateBook(nil)

	for i := 0; i < len(DefaultPhases)-1; i++ {
		require.NoError(t, m.CompletePhase(id))
		require.NoError(t, m.Advance(id))
	}
	require.NoError(t, m.CompletePhase(id))

	// Repeated advances at the terminal phase are rejected and move nothing.
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, m.Advance(id), ErrWorkflowFinished)
	}

	book, _ := m.Get(id)
	assert.Equal(t, DefaultPhases[len(DefaultPhases)-1], book.CurrentPhase)
	assert.True(t, book.Finished())
}

func TestCompletePhaseAfterFinishRejected(t *testing.T) {
	m, _ := newManager(t)
	id := m.CreateBook(nil)

	for i := 0; i < len(DefaultPhases); i++ {
		require.NoError(t, m.CompletePhase(id))
		if i < len(DefaultPhases)-1 {
			require.NoError(t, m.Advance(id))
		}
	}
	assert.ErrorIs(t, m.CompletePhase(id), ErrWorkflowFinished)
}

func TestUnknownBook(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Get("missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.ErrorIs(t, m.Advance("missing"), ErrBookNotFound)
	assert.ErrorIs(t, m.CompletePhase("missing"), ErrBookNotFound)
}

func TestCustomPhaseSequence(t *testing.T) {
	b := bus.NewInMemoryBus()
	m := NewManager(b, func(o *Options) { o.Phases = []string{"draft", "publish"} })
	id := m.CreateBook(nil)

	require.NoError(t, m.CompletePhase(id))
	require.NoError(t, m.Advance(id))

	book, _ := m.Get(id)
	assert.Equal(t, "publish", book.CurrentPhase)
}

func TestCreateTaskDeliversExactlyOneMatchingMessage(t *testing.T) {
	m, b := newManager(t)
	b.Register("outline")

	content := map[string]any{"title": "Voyage"}
	id, err := m.CreateTask("maestro", "outline", "create_outline", content, map[string]any{core.MetaBookID: "book-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := b.Drain("outline")
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID, "returned task id matches the delivered message")
	assert.Equal(t, core.MessageTypeTask, msgs[0].Type)
	assert.Equal(t, "create_outline", msgs[0].Kind)
	assert.Equal(t, content, msgs[0].Content)
	assert.Equal(t, "book-1", msgs[0].BookID())
}

func TestGetReturnsSnapshot(t *testing.T) {
	m, _ := newManager(t)
	id := m.CreateBook(nil)

	book, _ := m.Get(id)
	book.Phases[0].Status = PhaseStatusCompleted // mutate the copy

	again, _ := m.Get(id)
	assert.Equal(t, PhaseStatusActive, again.Phases[0].Status)
}
