package chat

import (
	"context"

	"github.com/google/uuid"
)

// Store is the record-store contract a session depends on. The production
// implementation is GormStore; tests inject fakes.
type Store interface {
	// FetchConversation returns the conversation with its listing summary,
	// or ErrNotFound.
	FetchConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	// FetchOtherParticipant resolves a display identity for a user id.
	FetchOtherParticipant(ctx context.Context, id uuid.UUID) (Identity, error)
	// FetchMessages returns all messages of a conversation ordered by
	// creation time ascending.
	FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	// MarkMessagesRead flips is_read to true for the given message ids.
	MarkMessagesRead(ctx context.Context, ids []uuid.UUID) error
	// InsertMessage persists a new message and returns the stored row with
	// its authoritative id and timestamp.
	InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (Message, error)
	// TouchConversation bumps the conversation's updated_at.
	TouchConversation(ctx context.Context, id uuid.UUID) error
	// CreateNotification records an in-app notification for a user.
	CreateNotification(ctx context.Context, recipientID uuid.UUID, kind, preview, link string) error
	// DeleteConversation removes the conversation and, by cascade, its
	// messages.
	DeleteConversation(ctx context.Context, id uuid.UUID) error
}

// Feed delivers insert events for messages of one conversation, in the
// order they were committed.
type Feed interface {
	Subscribe(conversationID uuid.UUID, onInsert func(Message)) (Subscription, error)
}

// Subscription is a live feed handle. Unsubscribe must be safe to call
// more than once.
type Subscription interface {
	Unsubscribe()
}
