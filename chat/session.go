package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	notificationKindMessage = "new_message"
	previewMaxLen           = 80
	placeholderName         = "Marketplace user"
)

// Session owns the lifecycle of one open conversation view: it loads the
// history, keeps a live append-only transcript, reconciles its own sends
// against the feed, and marks inbound messages read. All state transitions
// go through the pure reducer in reducer.go; the mutex keeps the
// single-writer discipline the transcript relies on.
type Session struct {
	store     Store
	feed      Feed
	principal Identity

	// OnAppend, when set before Open, is invoked (without the session lock
	// held) for every message appended to the transcript, whether it came
	// from the live feed or from this session's own send.
	OnAppend func(Message)

	mu        sync.Mutex
	convID    uuid.UUID
	snap      Snapshot
	draft     string
	sending   bool
	closed    bool
	closeOnce sync.Once
	sub       Subscription
}

// NewSession builds a session for one conversation id on behalf of the
// given principal. Call Open to load it and Close on teardown.
func NewSession(store Store, feed Feed, principal Identity, conversationID uuid.UUID) *Session {
	return &Session{
		store:     store,
		feed:      feed,
		principal: principal,
		convID:    conversationID,
		snap:      Snapshot{State: StateLoading},
	}
}

// Open runs the initialization sequence: fetch the conversation, check the
// principal is a participant, resolve the counterparty's display identity,
// fetch the history oldest-first, subscribe to the live feed, then mark the
// other side's unread messages read. Load failures are terminal; the
// read-mark is best-effort.
func (s *Session) Open(ctx context.Context) error {
	conv, err := s.store.FetchConversation(ctx, s.convID)
	if err != nil {
		return s.failLoad(err)
	}
	if !conv.HasParticipant(s.principal.ID) {
		return s.failLoad(ErrAccessDenied)
	}

	otherID := conv.OtherParticipant(s.principal.ID)
	other, err := s.store.FetchOtherParticipant(ctx, otherID)
	if err != nil {
		// A failed display lookup degrades to a placeholder, it never
		// fails the whole session.
		log.Printf("chat: participant lookup failed for %s: %v", otherID, err)
		other = Identity{ID: otherID, Name: placeholderName}
	}

	messages, err := s.store.FetchMessages(ctx, s.convID)
	if err != nil {
		return s.failLoad(err)
	}

	sub, err := s.feed.Subscribe(s.convID, s.handleInsert)
	if err != nil {
		return s.failLoad(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed
	}
	s.sub = sub
	s.snap = apply(s.snap, loadedEvent{conversation: conv, other: other, messages: messages})
	s.mu.Unlock()

	var unread []uuid.UUID
	for _, m := range messages {
		if m.SenderID == otherID && !m.IsRead {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		if err := s.store.MarkMessagesRead(ctx, unread); err != nil {
			log.Printf("chat: failed to mark %d messages read in %s: %v", len(unread), s.convID, err)
		}
	}
	return nil
}

func (s *Session) failLoad(err error) error {
	s.mu.Lock()
	s.snap = apply(s.snap, loadFailedEvent{err: err})
	s.mu.Unlock()
	return err
}

// handleInsert consumes one live feed event. The feed has no concept of
// "this is my own echo", so suppression is done here by comparing sender
// identity: the sender already appended its message at send time.
func (s *Session) handleInsert(m Message) {
	s.mu.Lock()
	if s.closed || s.snap.State != StateReady {
		s.mu.Unlock()
		return
	}
	if m.SenderID == s.principal.ID {
		s.mu.Unlock()
		return
	}
	before := len(s.snap.Transcript)
	s.snap = apply(s.snap, appendEvent{message: m})
	appended := len(s.snap.Transcript) > before
	onAppend := s.OnAppend
	s.mu.Unlock()

	if !appended {
		return
	}
	if onAppend != nil {
		onAppend(m)
	}
	// The viewer is actively looking at the conversation, so the inbound
	// message is read immediately. Best-effort.
	if err := s.store.MarkMessagesRead(context.Background(), []uuid.UUID{m.ID}); err != nil {
		log.Printf("chat: failed to mark message %s read: %v", m.ID, err)
	}
}

// Send inserts a message authored by the principal. Sends are single-flight
// per session, whitespace-only bodies are rejected, and no optimistic row
// is ever added: the transcript only gains messages acknowledged by the
// store. On failure the body is restored as the draft so the caller can
// retry without losing the text. A send that completes after Close returns
// the committed message but leaves the torn-down session untouched.
func (s *Session) Send(ctx context.Context, body string) (Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Message{}, ErrClosed
	}
	if s.snap.State != StateReady {
		s.mu.Unlock()
		return Message{}, ErrNotReady
	}
	if strings.TrimSpace(body) == "" {
		s.mu.Unlock()
		return Message{}, ErrEmptyBody
	}
	if s.sending {
		s.mu.Unlock()
		return Message{}, ErrSendInFlight
	}
	s.sending = true
	s.draft = ""
	conv := s.snap.Conversation
	other := s.snap.Other
	s.mu.Unlock()

	msg, err := s.store.InsertMessage(ctx, conv.ID, s.principal.ID, body)

	s.mu.Lock()
	s.sending = false
	if err != nil {
		s.draft = body
		s.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if s.closed {
		// The view went away while the insert was in flight. The message
		// is committed, but a torn-down session must not apply it or
		// notify anyone.
		s.mu.Unlock()
		return msg, nil
	}
	s.snap = apply(s.snap, appendEvent{message: msg})
	onAppend := s.OnAppend
	s.mu.Unlock()

	if onAppend != nil {
		onAppend(msg)
	}

	if err := s.store.TouchConversation(ctx, conv.ID); err != nil {
		log.Printf("chat: failed to touch conversation %s: %v", conv.ID, err)
	}
	link := "/messages/" + conv.ID.String()
	if err := s.store.CreateNotification(ctx, other.ID, notificationKindMessage, truncateBody(body), link); err != nil {
		log.Printf("chat: failed to notify %s for conversation %s: %v", other.ID, conv.ID, err)
	}
	return msg, nil
}

// Delete removes the whole conversation. Participation is re-checked
// locally even though the store enforces it too. On success the session is
// terminally Deleted and torn down; on failure it stays usable.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.snap.State != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	conv := s.snap.Conversation
	s.mu.Unlock()

	if !conv.HasParticipant(s.principal.ID) {
		return ErrAccessDenied
	}

	if err := s.store.DeleteConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	s.mu.Lock()
	s.snap = apply(s.snap, deletedEvent{})
	s.mu.Unlock()
	s.Close()
	return nil
}

// Close tears the session down and releases the feed subscription. It is
// idempotent; the unsubscribe runs exactly once even when Close races with
// Delete or an error path.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
	})
}

// Snapshot returns a copy of the current state. The transcript slice must
// not be mutated by callers.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Draft returns the text restored by a failed send, empty otherwise.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Principal returns the identity the session acts on behalf of.
func (s *Session) Principal() Identity {
	return s.principal
}

func truncateBody(body string) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= previewMaxLen {
		return string(runes)
	}
	return string(runes[:previewMaxLen-3]) + "..."
}
