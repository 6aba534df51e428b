package testutil

import (
	"github.com/inkmesh/inkmesh/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder(core.MessageTypeTask).
//		From("maestro").To("outline").
//		Kind("create_outline").
//		Content("title", "Voyage").
//		Book("book-1").
//		Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	msg core.Message
}

// NewMessageBuilder starts a builder for a message of the given type.
func NewMessageBuilder(t core.MessageType) *MessageBuilder {
	return &MessageBuilder{msg: core.NewMessage(t, "test-sender", "test-recipient")}
}

// NewTaskBuilder starts a builder for a task message of the given kind.
func NewTaskBuilder(kind string) *MessageBuilder {
	b := NewMessageBuilder(core.MessageTypeTask)
	b.msg.Kind = kind
	return b
}

// From sets the sender.
func (b *MessageBuilder) From(sender string) *MessageBuilder {
	b.msg.Sender = sender
	return b
}

// To sets the recipient.
func (b *MessageBuilder) To(recipient string) *MessageBuilder {
	b.msg.Recipient = recipient
	return b
}

// Kind sets the explicit task kind.
func (b *MessageBuilder) Kind(kind string) *MessageBuilder {
	b.msg.Kind = kind
	return b
}

// Parent sets the causal parent id.
func (b *MessageBuilder) Parent(id string) *MessageBuilder {
	b.msg.ParentID = id
	return b
}

// Content sets one content entry.
func (b *MessageBuilder) Content(key string, value any) *MessageBuilder {
	b.msg.Content[key] = value
	return b
}

// Meta sets one metadata entry.
func (b *MessageBuilder) Meta(key string, value any) *MessageBuilder {
	b.msg.Metadata[key] = value
	return b
}

// Book sets the correlated book id in metadata.
func (b *MessageBuilder) Book(bookID string) *MessageBuilder {
	return b.Meta(core.MetaBookID, bookID)
}

// Rating sets the feedback rating in metadata.
func (b *MessageBuilder) Rating(r int) *MessageBuilder {
	return b.Meta(core.MetaRating, r)
}

// Build returns the constructed message.
func (b *MessageBuilder) Build() core.Message { return b.msg }
