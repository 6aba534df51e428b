package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmesh/inkmesh/bus"
	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/provider"
	"github.com/inkmesh/inkmesh/retry"
	"github.com/inkmesh/inkmesh/storage"
)

// fastRetry keeps the bounded-attempt policy but skips real backoff sleeps.
func fastRetry() func(o *Options) {
	return func(o *Options) {
		o.Retry = retry.New(func(ro *retry.Options) {
			ro.Sleep = func(context.Context, time.Duration) error { return nil }
		})
	}
}

func bookTask(recipient, kind string, content map[string]any) core.Message {
	return core.NewTask("maestro", recipient, kind, content, map[string]any{core.MetaBookID: "book-1"})
}

func TestOutlineAgentCreatesAndStoresOutline(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	mock := provider.NewMockProvider("test-model")
	store := storage.NewInMemoryStore()
	oa := NewOutlineAgent(b, mock, store, fastRetry())

	task := bookTask(AgentOutline, KindCreateOutline, map[string]any{"title": "Voyage", "genre": "sci-fi"})
	require.NoError(t, b.Deliver(task))
	oa.Step(context.Background())

	rec, err := oa.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, rec.Status)

	stored, err := store.Load("book-1", ComponentOutline)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	msgs := b.Drain("maestro")
	require.Len(t, msgs, 1)
	assert.Equal(t, core.MessageTypeResult, msgs[0].Type)
	assert.Equal(t, ComponentOutline, msgs[0].Content["component"])
}

func TestOutlineAgentRetriesTransientProviderFailure(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	mock := provider.NewMockProvider("test-model")
	mock.FailTimes(2, errors.New("rate limited"))
	store := storage.NewInMemoryStore()
	oa := NewOutlineAgent(b, mock, store, fastRetry())

	task := bookTask(AgentOutline, KindCreateOutline, map[string]any{"title": "Voyage"})
	require.NoError(t, b.Deliver(task))
	oa.Step(context.Background())

	rec, err := oa.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, rec.Status, "two transient failures fit inside three attempts")
	assert.Equal(t, 3, mock.Calls())
}

func TestOutlineAgentPermanentFailureSkipsRetry(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	mock := provider.NewMockProvider("test-model")
	mock.FailTimes(5, retry.Permanent(errors.New("invalid api key")))
	store := storage.NewInMemoryStore()
	oa := NewOutlineAgent(b, mock, store, fastRetry())

	task := bookTask(AgentOutline, KindCreateOutline, map[string]any{"title": "Voyage"})
	require.NoError(t, b.Deliver(task))
	oa.Step(context.Background())

	rec, err := oa.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, rec.Status)
	assert.Equal(t, 1, mock.Calls())

	msgs := b.Drain("maestro")
	require.Len(t, msgs, 1)
	assert.Equal(t, core.MessageTypeError, msgs[0].Type)
}

func TestOutlineAgentRequiresBookID(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	oa := NewOutlineAgent(b, provider.NewMockProvider("m"), storage.NewInMemoryStore(), fastRetry())

	task := core.NewTask("maestro", AgentOutline, KindCreateOutline, map[string]any{"title": "Voyage"}, nil)
	require.NoError(t, b.Deliver(task))
	oa.Step(context.Background())

	rec, err := oa.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, rec.Status)
	assert.Contains(t, rec.Err, "missing required field")
}

func TestCharactersRequireExistingOutline(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	store := storage.NewInMemoryStore()
	oa := NewOutlineAgent(b, provider.NewMockProvider("m"), store, fastRetry())

	task := bookTask(AgentOutline, KindCreateCharacters, nil)
	require.NoError(t, b.Deliver(task))
	oa.Step(context.Background())

	rec, err := oa.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, rec.Status)
}

func TestNarrativeAgentWritesChapterFromOutline(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	store := storage.NewInMemoryStore()
	require.NoError(t, store.Save("book-1", ComponentOutline, []byte("ch1: departure")))
	na := NewNarrativeAgent(b, provider.NewMockProvider("m"), store, fastRetry())

	task := bookTask(AgentNarrative, KindWriteChapter, map[string]any{"chapter": 1})
	require.NoError(t, b.Deliver(task))
	na.Step(context.Background())

	rec, err := na.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, rec.Status)

	draft, err := store.Load("book-1", ChapterComponent(1))
	require.NoError(t, err)
	assert.NotEmpty(t, draft)
}

func TestNarrativeAgentChapterFieldAcceptsFloat(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	store := storage.NewInMemoryStore()
	require.NoError(t, store.Save("book-1", ComponentOutline, []byte("outline")))
	na := NewNarrativeAgent(b, provider.NewMockProvider("m"), store, fastRetry())

	// Content decoded from JSON carries numbers as float64.
	task := bookTask(AgentNarrative, KindWriteChapter, map[string]any{"chapter": float64(2)})
	require.NoError(t, b.Deliver(task))
	na.Step(context.Background())

	rec, err := na.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, rec.Status)
	_, err = store.Load("book-1", ChapterComponent(2))
	assert.NoError(t, err)
}

func TestReviseChapterNeedsExistingDraft(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	na := NewNarrativeAgent(b, provider.NewMockProvider("m"), storage.NewInMemoryStore(), fastRetry())

	task := bookTask(AgentNarrative, KindReviseChapter, map[string]any{"chapter": 1})
	require.NoError(t, b.Deliver(task))
	na.Step(context.Background())

	rec, err := na.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, rec.Status)
}

func TestLinguisticAgentPolishOverwritesChapter(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	store := storage.NewInMemoryStore()
	require.NoError(t, store.Save("book-1", ChapterComponent(1), []byte("rough draft")))
	mock := provider.NewMockProvider("m")
	la := NewLinguisticAgent(b, mock, store, fastRetry())

	task := bookTask(AgentLinguistic, KindPolishChapter, map[string]any{"chapter": 1})
	require.NoError(t, b.Deliver(task))
	la.Step(context.Background())

	rec, err := la.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, rec.Status)

	polished, err := store.Load("book-1", ChapterComponent(1))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("rough draft"), polished)
}

func TestContinuityCheckNeedsChapters(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	store := storage.NewInMemoryStore()
	require.NoError(t, store.Save("book-1", ComponentOutline, []byte("outline only")))
	la := NewLinguisticAgent(b, provider.NewMockProvider("m"), store, fastRetry())

	task := bookTask(AgentLinguistic, KindCheckContinuity, nil)
	require.NoError(t, b.Deliver(task))
	la.Step(context.Background())

	rec, err := la.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, rec.Status)
	assert.Contains(t, rec.Err, "no chapters to check")
}

func TestContinuityCheckProducesReport(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	store := storage.NewInMemoryStore()
	require.NoError(t, store.Save("book-1", ChapterComponent(1), []byte("one")))
	require.NoError(t, store.Save("book-1", ChapterComponent(2), []byte("two")))
	la := NewLinguisticAgent(b, provider.NewMockProvider("m"), store, fastRetry())

	task := bookTask(AgentLinguistic, KindCheckContinuity, nil)
	require.NoError(t, b.Deliver(task))
	la.Step(context.Background())

	rec, err := la.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, rec.Status)
	report, err := store.Load("book-1", ComponentContinuityReport)
	require.NoError(t, err)
	assert.NotEmpty(t, report)
}

func TestVisualAgentCoverPipeline(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	store := storage.NewInMemoryStore()
	text := provider.NewMockProvider("text-model")
	image := provider.NewMockProvider("image-model")
	va := NewVisualAgent(b, text, image, store, fastRetry())

	concept := bookTask(AgentVisual, KindCreateCoverConcept, map[string]any{"title": "Voyage"})
	require.NoError(t, b.Deliver(concept))
	va.Step(context.Background())

	rec, err := va.Status(concept.ID)
	require.NoError(t, err)
	require.Equal(t, core.TaskStatusCompleted, rec.Status)
	_, err = store.Load("book-1", ComponentCoverConcept)
	require.NoError(t, err)

	render := bookTask(AgentVisual, KindGenerateCoverArt, nil)
	require.NoError(t, b.Deliver(render))
	va.Step(context.Background())

	rec, err = va.Status(render.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusCompleted, rec.Status)
	_, err = store.Load("book-1", ComponentCoverImage)
	assert.NoError(t, err)
	assert.Equal(t, 1, image.Calls(), "only the render step touches the image provider")
}

func TestGenerateCoverArtWithoutConceptFails(t *testing.T) {
	b := bus.NewInMemoryBus()
	b.Register("maestro")
	va := NewVisualAgent(b, provider.NewMockProvider("t"), provider.NewMockProvider("i"), storage.NewInMemoryStore(), fastRetry())

	task := bookTask(AgentVisual, KindGenerateCoverArt, nil)
	require.NoError(t, b.Deliver(task))
	va.Step(context.Background())

	rec, err := va.Status(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskStatusFailed, rec.Status)
}
