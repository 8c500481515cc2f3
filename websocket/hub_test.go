package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/maximusartimus/am-marketplace-sub000/chat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore is the minimal chat.Store a session needs to open against the
// hub in tests.
type stubStore struct {
	conv  chat.Conversation
	other chat.Identity
}

func (s *stubStore) FetchConversation(ctx context.Context, id uuid.UUID) (chat.Conversation, error) {
	return s.conv, nil
}

func (s *stubStore) FetchOtherParticipant(ctx context.Context, id uuid.UUID) (chat.Identity, error) {
	return s.other, nil
}

func (s *stubStore) FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	return nil, nil
}

func (s *stubStore) MarkMessagesRead(ctx context.Context, ids []uuid.UUID) error { return nil }

func (s *stubStore) InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (chat.Message, error) {
	return chat.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: senderID, Body: body}, nil
}

func (s *stubStore) TouchConversation(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubStore) CreateNotification(ctx context.Context, recipientID uuid.UUID, kind, preview, link string) error {
	return nil
}

func (s *stubStore) DeleteConversation(ctx context.Context, id uuid.UUID) error { return nil }

var hubOnce sync.Once

func startHub() {
	hubOnce.Do(func() { go RunHub() })
}

func collect(t *testing.T, ch <-chan chat.Message) chat.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hub delivery")
		return chat.Message{}
	}
}

func TestHubDeliversToConversationSubscribers(t *testing.T) {
	startHub()

	conversationID := uuid.New()
	received := make(chan chat.Message, 4)

	sub, err := Feed().Subscribe(conversationID, func(m chat.Message) { received <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	msg := chat.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: uuid.New(), Body: "hi"}
	Publish(msg)

	got := collect(t, received)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "hi", got.Body)
}

func TestHubScopesDeliveryByConversation(t *testing.T) {
	startHub()

	mine := uuid.New()
	theirs := uuid.New()
	received := make(chan chat.Message, 4)

	sub, err := Feed().Subscribe(mine, func(m chat.Message) { received <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	Publish(chat.Message{ID: uuid.New(), ConversationID: theirs, SenderID: uuid.New(), Body: "not for you"})
	Publish(chat.Message{ID: uuid.New(), ConversationID: mine, SenderID: uuid.New(), Body: "for you"})

	got := collect(t, received)
	assert.Equal(t, "for you", got.Body)
	assert.Empty(t, received)
}

func TestHubPreservesPublishOrder(t *testing.T) {
	startHub()

	conversationID := uuid.New()
	received := make(chan chat.Message, 8)

	sub, err := Feed().Subscribe(conversationID, func(m chat.Message) { received <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	bodies := []string{"one", "two", "three", "four"}
	for _, body := range bodies {
		Publish(chat.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: uuid.New(), Body: body})
	}

	for _, want := range bodies {
		assert.Equal(t, want, collect(t, received).Body)
	}
}

func TestSessionTeardownDuringBroadcastIsSafe(t *testing.T) {
	startHub()

	conv := chat.Conversation{
		ID:       uuid.New(),
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
		Status:   "open",
	}
	store := &stubStore{conv: conv, other: chat.Identity{ID: conv.SellerID}}

	session := chat.NewSession(store, Feed(), chat.Identity{ID: conv.BuyerID}, conv.ID)
	received := make(chan chat.Message, 4)
	session.OnAppend = func(m chat.Message) { received <- m }
	require.NoError(t, session.Open(context.Background()))

	// Tear the session down, then broadcast into the conversation. The
	// hub must keep running and the dead session must see nothing.
	session.Close()
	Publish(chat.Message{ID: uuid.New(), ConversationID: conv.ID, SenderID: conv.SellerID, Body: "late"})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, received)
	assert.Empty(t, session.Snapshot().Transcript)

	// Later broadcasts still reach live subscribers: the hub survived.
	liveConv := uuid.New()
	liveCh := make(chan chat.Message, 1)
	sub, err := Feed().Subscribe(liveConv, func(m chat.Message) { liveCh <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	Publish(chat.Message{ID: uuid.New(), ConversationID: liveConv, SenderID: uuid.New(), Body: "alive"})
	assert.Equal(t, "alive", collect(t, liveCh).Body)
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	startHub()

	conversationID := uuid.New()
	received := make(chan chat.Message, 4)

	sub, err := Feed().Subscribe(conversationID, func(m chat.Message) { received <- m })
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	Publish(chat.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: uuid.New(), Body: "late"})

	// Give the hub a moment; nothing may arrive.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, received)

	subscribersMu.RLock()
	_, stillRegistered := subscribers[conversationID]
	subscribersMu.RUnlock()
	assert.False(t, stillRegistered, "empty subscriber sets are pruned")
}
