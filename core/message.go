package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageType categorizes the intent of a message on the bus.
type MessageType string

const (
	// MessageTypeTask assigns a unit of work to the recipient.
	MessageTypeTask MessageType = "task"
	// MessageTypeResult reports the outcome of a completed task.
	MessageTypeResult MessageType = "result"
	// MessageTypeFeedback carries commentary (and an optional rating) on a
	// previously produced result.
	MessageTypeFeedback MessageType = "feedback"
	// MessageTypeError notifies the recipient that a task failed.
	MessageTypeError MessageType = "error"
)

// Metadata keys shared across agents. Kept as constants so senders and
// handlers agree on spelling.
const (
	// MetaBookID correlates a message with the book it concerns.
	MetaBookID = "book_id"
	// MetaRating is the numeric feedback rating (1-5 scale).
	MetaRating = "rating"
	// MetaRefinementDepth counts how many refinement rounds precede a task.
	MetaRefinementDepth = "refinement_depth"
)

// Content keys with fixed meaning.
const (
	// ContentTaskDescription holds free text a recipient may scan to infer a
	// task kind when no explicit Kind was set.
	ContentTaskDescription = "task_description"
	// ContentFeedback holds the feedback text of a feedback message.
	ContentFeedback = "feedback"
	// ContentError holds the human-readable failure reason of an error message.
	ContentError = "error"
)

// Message is the unit of communication between agents. After delivery it
// should be treated as immutable. ParentID links a Feedback or refinement
// Task to the task it comments on or replaces; it is the only cross-message
// ordering relationship the bus knows about.
//
// Messages live only for the process's runtime; the bus offers no persistence
// or redelivery.
type Message struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Kind      string         `json:"kind,omitempty"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Content   map[string]any `json:"content,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewID generates a unique identifier for messages, tasks and books.
func NewID() string { return uuid.NewString() }

// NewMessage creates a bare message of the given type. Prefer the semantic
// constructors (NewTask, NewResult, NewFeedback, NewError).
func NewMessage(t MessageType, sender, recipient string) Message {
	return Message{
		ID:        NewID(),
		Type:      t,
		Sender:    sender,
		Recipient: recipient,
		Content:   map[string]any{},
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

// NewTask creates a task message carrying an explicit kind. The kind is the
// authoritative dispatch key; free-text inference is a legacy fallback for
// messages created without one.
func NewTask(sender, recipient, kind string, content, metadata map[string]any) Message {
	m := NewMessage(MessageTypeTask, sender, recipient)
	m.Kind = kind
	if content != nil {
		m.Content = content
	}
	if metadata != nil {
		m.Metadata = metadata
	}
	return m
}

// NewResult creates a result message answering the task identified by parentID.
func NewResult(sender, recipient string, content map[string]any, parentID string) Message {
	m := NewMessage(MessageTypeResult, sender, recipient)
	if content != nil {
		m.Content = content
	}
	m.ParentID = parentID
	return m
}

// NewFeedback creates a feedback message on the task identified by parentID.
// A rating of 0 means unrated.
func NewFeedback(sender, recipient, feedback string, parentID string, rating int) Message {
	m := NewMessage(MessageTypeFeedback, sender, recipient)
	m.Content[ContentFeedback] = feedback
	m.ParentID = parentID
	if rating != 0 {
		m.Metadata[MetaRating] = rating
	}
	return m
}

// NewError creates an error notification for the task identified by parentID.
func NewError(sender, recipient, reason string, parentID string, details map[string]any) Message {
	m := NewMessage(MessageTypeError, sender, recipient)
	m.Content[ContentError] = reason
	m.ParentID = parentID
	if details != nil {
		m.Metadata = details
	}
	return m
}

// TaskDescription returns the free-text description of a task message, or ""
// when absent.
func (m Message) TaskDescription() string {
	s, _ := m.Content[ContentTaskDescription].(string)
	return s
}

// FeedbackText returns the feedback text of a feedback message, or "".
func (m Message) FeedbackText() string {
	s, _ := m.Content[ContentFeedback].(string)
	return s
}

// Rating returns the numeric rating attached to a feedback message and
// whether one was present. Both int and float64 encodings are accepted since
// metadata may round-trip through JSON.
func (m Message) Rating() (int, bool) {
	switch v := m.Metadata[MetaRating].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// BookID returns the correlated book id from metadata, falling back to
// content, or "" when the message carries none.
func (m Message) BookID() string {
	if s, ok := m.Metadata[MetaBookID].(string); ok {
		return s
	}
	s, _ := m.Content[MetaBookID].(string)
	return s
}

// RefinementDepth returns how many refinement rounds precede this task.
func (m Message) RefinementDepth() int {
	switch v := m.Metadata[MetaRefinementDepth].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
