package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotification struct {
	RecipientID uuid.UUID
	Kind        string
	Preview     string
	Link        string
}

type fakeStore struct {
	mu sync.Mutex

	conv        Conversation
	convErr     error
	other       Identity
	otherErr    error
	messages    []Message
	messagesErr error

	insertErr     error
	insertGate    chan struct{}
	insertEntered chan struct{}
	enteredOnce   sync.Once
	touchErr      error
	notifyErr     error
	deleteErr     error

	readMarked    [][]uuid.UUID
	inserted      []Message
	touched       []uuid.UUID
	notifications []fakeNotification
	deleted       []uuid.UUID

	clock time.Time
}

func (f *fakeStore) FetchConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	if f.convErr != nil {
		return Conversation{}, f.convErr
	}
	return f.conv, nil
}

func (f *fakeStore) FetchOtherParticipant(ctx context.Context, id uuid.UUID) (Identity, error) {
	if f.otherErr != nil {
		return Identity{}, f.otherErr
	}
	return f.other, nil
}

func (f *fakeStore) FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeStore) MarkMessagesRead(ctx context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readMarked = append(f.readMarked, ids)
	for _, id := range ids {
		for i := range f.messages {
			if f.messages[i].ID == id {
				f.messages[i].IsRead = true
			}
		}
	}
	return nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (Message, error) {
	if f.insertEntered != nil {
		f.enteredOnce.Do(func() { close(f.insertEntered) })
	}
	if f.insertGate != nil {
		<-f.insertGate
	}
	if f.insertErr != nil {
		return Message{}, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Second)
	msg := Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      f.clock,
	}
	f.messages = append(f.messages, msg)
	f.inserted = append(f.inserted, msg)
	return msg, nil
}

func (f *fakeStore) TouchConversation(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return f.touchErr
}

func (f *fakeStore) CreateNotification(ctx context.Context, recipientID uuid.UUID, kind, preview, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, fakeNotification{recipientID, kind, preview, link})
	return f.notifyErr
}

func (f *fakeStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) readMarkCalls() [][]uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]uuid.UUID, len(f.readMarked))
	copy(out, f.readMarked)
	return out
}

type fakeSub struct {
	feed *fakeFeed
}

func (s *fakeSub) Unsubscribe() {
	s.feed.mu.Lock()
	s.feed.unsubscribeCount++
	s.feed.handler = nil
	s.feed.mu.Unlock()
}

type fakeFeed struct {
	mu               sync.Mutex
	subscribeErr     error
	handler          func(Message)
	unsubscribeCount int
}

func (f *fakeFeed) Subscribe(conversationID uuid.UUID, onInsert func(Message)) (Subscription, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.mu.Lock()
	f.handler = onInsert
	f.mu.Unlock()
	return &fakeSub{feed: f}, nil
}

// Emit delivers a live insert event as the hub would.
func (f *fakeFeed) Emit(m Message) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(m)
	}
}

var (
	buyerID  = uuid.New()
	sellerID = uuid.New()
)

func testConversation() Conversation {
	return Conversation{
		ID:        uuid.New(),
		ListingID: uuid.New(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Status:    "open",
		Listing:   ListingSummary{Title: "Road bike"},
		CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func messageAt(conv Conversation, sender uuid.UUID, body string, minute int, read bool) Message {
	return Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender,
		Body:           body,
		IsRead:         read,
		CreatedAt:      time.Date(2025, 6, 1, 10, minute, 0, 0, time.UTC),
	}
}

func newTestSession(store *fakeStore, feed *fakeFeed) *Session {
	return NewSession(store, feed, Identity{ID: buyerID, Name: "Ada"}, store.conv.ID)
}

func TestOpenLoadsTranscriptChronologically(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{
		conv:  conv,
		other: Identity{ID: sellerID, Name: "Grace"},
		messages: []Message{
			messageAt(conv, buyerID, "Is this available?", 1, true),
			messageAt(conv, sellerID, "Yes it is", 2, true),
			messageAt(conv, sellerID, "Still interested?", 3, false),
		},
		clock: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	snap := session.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "Grace", snap.Other.Name)
	require.Len(t, snap.Transcript, 3)
	for i := 1; i < len(snap.Transcript); i++ {
		assert.False(t, snap.Transcript[i].CreatedAt.Before(snap.Transcript[i-1].CreatedAt),
			"transcript out of chronological order at %d", i)
	}
}

func TestOpenMarksOnlyOtherSendersUnreadMessagesRead(t *testing.T) {
	conv := testConversation()
	myUnread := messageAt(conv, buyerID, "ping", 1, false)
	theirRead := messageAt(conv, sellerID, "pong", 2, true)
	theirUnread := messageAt(conv, sellerID, "hello?", 3, false)
	store := &fakeStore{
		conv:     conv,
		other:    Identity{ID: sellerID, Name: "Grace"},
		messages: []Message{myUnread, theirRead, theirUnread},
	}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	calls := store.readMarkCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []uuid.UUID{theirUnread.ID}, calls[0])
}

func TestOpenNotFoundIsTerminal(t *testing.T) {
	store := &fakeStore{convErr: ErrNotFound}
	feed := &fakeFeed{}

	session := NewSession(store, feed, Identity{ID: buyerID}, uuid.New())
	err := session.Open(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	snap := session.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.ErrorIs(t, snap.Err, ErrNotFound)
	assert.Zero(t, feed.unsubscribeCount)
}

func TestOpenRejectsNonParticipant(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv}
	feed := &fakeFeed{}

	stranger := Identity{ID: uuid.New(), Name: "Mallory"}
	session := NewSession(store, feed, stranger, conv.ID)
	err := session.Open(context.Background())
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, StateError, session.Snapshot().State)
}

func TestOpenDegradesToPlaceholderOnParticipantLookupFailure(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{
		conv:     conv,
		otherErr: errors.New("user service down"),
	}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	snap := session.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, sellerID, snap.Other.ID)
	assert.Equal(t, placeholderName, snap.Other.Name)
}

func TestSendAppendsAcknowledgedRow(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID, Name: "Grace"}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	msg, err := session.Send(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, buyerID, msg.SenderID)
	assert.False(t, msg.IsRead, "a fresh message is unread by the recipient")

	snap := session.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, "Hello", snap.Transcript[0].Body)
	assert.Equal(t, msg.ID, snap.Transcript[0].ID)

	assert.Equal(t, []uuid.UUID{conv.ID}, store.touched)
	require.Len(t, store.notifications, 1)
	assert.Equal(t, sellerID, store.notifications[0].RecipientID)
	assert.Equal(t, "new_message", store.notifications[0].Kind)
	assert.Equal(t, "Hello", store.notifications[0].Preview)
	assert.Equal(t, "/messages/"+conv.ID.String(), store.notifications[0].Link)
}

func TestSendTruncatesNotificationPreview(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	long := ""
	for i := 0; i < 20; i++ {
		long += "0123456789"
	}
	_, err := session.Send(context.Background(), long)
	require.NoError(t, err)

	require.Len(t, store.notifications, 1)
	preview := store.notifications[0].Preview
	assert.Len(t, []rune(preview), previewMaxLen)
	assert.Equal(t, "...", preview[len(preview)-3:])
}

func TestSendRejectsWhitespaceOnlyBody(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	for _, body := range []string{"", "   ", "\n\t "} {
		_, err := session.Send(context.Background(), body)
		assert.ErrorIs(t, err, ErrEmptyBody)
	}
	assert.Empty(t, store.inserted)
}

func TestSendBeforeOpenIsRejected(t *testing.T) {
	store := &fakeStore{conv: testConversation()}
	session := newTestSession(store, &fakeFeed{})

	_, err := session.Send(context.Background(), "too early")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSendFailurePreservesDraft(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{
		conv:      conv,
		other:     Identity{ID: sellerID},
		insertErr: errors.New("storage unavailable"),
	}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	const draft = "please don't lose me"
	_, err := session.Send(context.Background(), draft)
	require.ErrorIs(t, err, ErrSendFailed)

	assert.Equal(t, draft, session.Draft())
	assert.Empty(t, session.Snapshot().Transcript, "no optimistic row may appear on failure")
	assert.Empty(t, store.touched)
	assert.Empty(t, store.notifications)

	// Retry with the restored draft succeeds.
	store.insertErr = nil
	_, err = session.Send(context.Background(), session.Draft())
	require.NoError(t, err)
	assert.Empty(t, session.Draft())
	assert.Len(t, session.Snapshot().Transcript, 1)
}

func TestSendSingleFlightGuard(t *testing.T) {
	conv := testConversation()
	gate := make(chan struct{})
	entered := make(chan struct{})
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}, insertGate: gate, insertEntered: entered}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	firstDone := make(chan error, 1)
	go func() {
		_, err := session.Send(context.Background(), "first")
		firstDone <- err
	}()

	// Wait until the first send is inside the store call, then probe the
	// guard.
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first send never reached the store")
	}
	_, err := session.Send(context.Background(), "second")
	require.ErrorIs(t, err, ErrSendInFlight)

	close(gate)
	require.NoError(t, <-firstDone)

	snap := session.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, "first", snap.Transcript[0].Body)
	assert.Len(t, store.inserted, 1, "the guarded send must not reach storage")

	// The guard releases once the first send completes.
	_, err = session.Send(context.Background(), "third")
	require.NoError(t, err)
	assert.Len(t, session.Snapshot().Transcript, 2)
}

func TestSendCompletingAfterCloseIsDiscarded(t *testing.T) {
	conv := testConversation()
	gate := make(chan struct{})
	entered := make(chan struct{})
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}, insertGate: gate, insertEntered: entered}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)

	var appended []Message
	var appendedMu sync.Mutex
	session.OnAppend = func(m Message) {
		appendedMu.Lock()
		appended = append(appended, m)
		appendedMu.Unlock()
	}
	require.NoError(t, session.Open(context.Background()))

	sendDone := make(chan error, 1)
	go func() {
		_, err := session.Send(context.Background(), "in flight")
		sendDone <- err
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("send never reached the store")
	}

	// Tear the session down while the insert is still in flight, then let
	// the store acknowledge it.
	session.Close()
	close(gate)
	require.NoError(t, <-sendDone)

	assert.Empty(t, session.Snapshot().Transcript, "a closed session must not apply the stale send result")
	appendedMu.Lock()
	defer appendedMu.Unlock()
	assert.Empty(t, appended, "a closed session must not notify consumers")
	assert.Empty(t, store.touched)
	assert.Empty(t, store.notifications)
}

func TestBestEffortFailuresDoNotFailSend(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{
		conv:      conv,
		other:     Identity{ID: sellerID},
		touchErr:  errors.New("touch failed"),
		notifyErr: errors.New("notify failed"),
	}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	_, err := session.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, session.Snapshot().Transcript, 1)
}

func TestLiveReceiveAppendsAndMarksRead(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID, Name: "Grace"}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)

	var received []Message
	var receivedMu sync.Mutex
	session.OnAppend = func(m Message) {
		receivedMu.Lock()
		received = append(received, m)
		receivedMu.Unlock()
	}
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	inbound := messageAt(conv, sellerID, "Hi back", 5, false)
	feed.Emit(inbound)

	snap := session.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, "Hi back", snap.Transcript[0].Body)
	assert.Equal(t, sellerID, snap.Transcript[0].SenderID)

	calls := store.readMarkCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []uuid.UUID{inbound.ID}, calls[0])

	receivedMu.Lock()
	defer receivedMu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, inbound.ID, received[0].ID)
}

func TestSenderEchoIsSuppressed(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	sent, err := session.Send(context.Background(), "Hello")
	require.NoError(t, err)

	// The live channel echoes the sender's own insert.
	feed.Emit(sent)

	snap := session.Snapshot()
	require.Len(t, snap.Transcript, 1, "echo must not duplicate the sender's message")
	assert.Equal(t, sent.ID, snap.Transcript[0].ID)

	// No read-mark is issued for the sender's own message.
	assert.Empty(t, store.readMarkCalls())
}

func TestLiveEventsPreserveChronology(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{
		conv:  conv,
		other: Identity{ID: sellerID},
		messages: []Message{
			messageAt(conv, sellerID, "one", 1, true),
			messageAt(conv, buyerID, "two", 2, true),
		},
	}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	feed.Emit(messageAt(conv, sellerID, "three", 3, false))
	feed.Emit(messageAt(conv, sellerID, "four", 4, false))

	snap := session.Snapshot()
	require.Len(t, snap.Transcript, 4)
	for i := 1; i < len(snap.Transcript); i++ {
		assert.False(t, snap.Transcript[i].CreatedAt.Before(snap.Transcript[i-1].CreatedAt))
	}
	assert.Equal(t, "four", snap.Transcript[3].Body)
}

func TestMalformedLiveEventIsDropped(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	// Sender is not a participant of the conversation.
	feed.Emit(messageAt(conv, uuid.New(), "spoofed", 5, false))
	// Row without an id.
	feed.Emit(Message{ConversationID: conv.ID, SenderID: sellerID, Body: "no id"})

	assert.Empty(t, session.Snapshot().Transcript)
	assert.Empty(t, store.readMarkCalls())
}

func TestDeleteByParticipant(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))

	require.NoError(t, session.Delete(context.Background()))
	assert.Equal(t, StateDeleted, session.Snapshot().State)
	assert.Equal(t, []uuid.UUID{conv.ID}, store.deleted)
	assert.Equal(t, 1, feed.unsubscribeCount, "teardown must release the subscription")

	// The session is terminal: no further sends.
	_, err := session.Send(context.Background(), "too late")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDeleteFailureKeepsSessionUsable(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{
		conv:      conv,
		other:     Identity{ID: sellerID},
		deleteErr: errors.New("storage unavailable"),
	}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	defer session.Close()

	err := session.Delete(context.Background())
	require.ErrorIs(t, err, ErrDeleteFailed)
	assert.Equal(t, StateReady, session.Snapshot().State)

	// Still usable after the failed delete.
	store.deleteErr = nil
	_, err = session.Send(context.Background(), "still here")
	require.NoError(t, err)
}

func TestCloseUnsubscribesExactlyOnce(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))

	session.Close()
	session.Close()
	assert.Equal(t, 1, feed.unsubscribeCount)
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{}

	session := newTestSession(store, feed)
	require.NoError(t, session.Open(context.Background()))
	session.Close()

	session.handleInsert(messageAt(conv, sellerID, "late", 9, false))
	assert.Empty(t, session.Snapshot().Transcript)
	assert.Empty(t, store.readMarkCalls())
}

func TestSubscribeFailureIsTerminal(t *testing.T) {
	conv := testConversation()
	store := &fakeStore{conv: conv, other: Identity{ID: sellerID}}
	feed := &fakeFeed{subscribeErr: errors.New("feed down")}

	session := newTestSession(store, feed)
	err := session.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, session.Snapshot().State)
}
