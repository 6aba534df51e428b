package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	content := map[string]any{"title": "Voyage"}
	meta := map[string]any{MetaBookID: "book-1"}

	msg := NewTask("maestro", "outline", "create_outline", content, meta)

	require.NotEmpty(t, msg.ID)
	assert.Equal(t, MessageTypeTask, msg.Type)
	assert.Equal(t, "create_outline", msg.Kind)
	assert.Equal(t, "maestro", msg.Sender)
	assert.Equal(t, "outline", msg.Recipient)
	assert.Equal(t, content, msg.Content)
	assert.Equal(t, "book-1", msg.BookID())
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestNewFeedbackCarriesRating(t *testing.T) {
	msg := NewFeedback("maestro", "outline", "please refine", "task-1", 2)

	assert.Equal(t, MessageTypeFeedback, msg.Type)
	assert.Equal(t, "task-1", msg.ParentID)
	assert.Equal(t, "please refine", msg.FeedbackText())
	rating, ok := msg.Rating()
	require.True(t, ok)
	assert.Equal(t, 2, rating)
}

func TestRatingAbsent(t *testing.T) {
	msg := NewFeedback("a", "b", "fine", "task-1", 0)
	_, ok := msg.Rating()
	assert.False(t, ok)
}

func TestRatingAcceptsFloat(t *testing.T) {
	// Metadata that round-tripped through JSON decodes numbers as float64.
	msg := NewMessage(MessageTypeFeedback, "a", "b")
	msg.Metadata[MetaRating] = float64(4)
	rating, ok := msg.Rating()
	require.True(t, ok)
	assert.Equal(t, 4, rating)
}

func TestBookIDFallsBackToContent(t *testing.T) {
	msg := NewMessage(MessageTypeTask, "a", "b")
	msg.Content[MetaBookID] = "book-2"
	assert.Equal(t, "book-2", msg.BookID())
}

func TestRefinementDepthDefaultsToZero(t *testing.T) {
	msg := NewMessage(MessageTypeTask, "a", "b")
	assert.Equal(t, 0, msg.RefinementDepth())

	msg.Metadata[MetaRefinementDepth] = 2
	assert.Equal(t, 2, msg.RefinementDepth())
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewError("outline", "maestro", "boom", "task-9", nil)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "task-9", msg.ParentID)
	assert.Equal(t, "boom", msg.Content[ContentError])
}
