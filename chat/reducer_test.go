package chat

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestApplyLifecycle(t *testing.T) {
	conv := testConversation()
	other := Identity{ID: sellerID, Name: "Grace"}
	first := messageAt(conv, sellerID, "hello", 1, true)

	tests := []struct {
		name      string
		start     Snapshot
		event     event
		wantState State
		wantLen   int
	}{
		{
			name:      "loading to ready",
			start:     Snapshot{State: StateLoading},
			event:     loadedEvent{conversation: conv, other: other, messages: []Message{first}},
			wantState: StateReady,
			wantLen:   1,
		},
		{
			name:      "loading to error",
			start:     Snapshot{State: StateLoading},
			event:     loadFailedEvent{err: ErrNotFound},
			wantState: StateError,
		},
		{
			name:      "loaded event ignored when already ready",
			start:     Snapshot{State: StateReady, Conversation: conv},
			event:     loadedEvent{conversation: conv, other: other},
			wantState: StateReady,
		},
		{
			name:      "append in ready",
			start:     Snapshot{State: StateReady, Conversation: conv},
			event:     appendEvent{message: messageAt(conv, buyerID, "hi", 2, false)},
			wantState: StateReady,
			wantLen:   1,
		},
		{
			name:      "append ignored while loading",
			start:     Snapshot{State: StateLoading},
			event:     appendEvent{message: first},
			wantState: StateLoading,
		},
		{
			name:      "append ignored after delete",
			start:     Snapshot{State: StateDeleted, Conversation: conv},
			event:     appendEvent{message: first},
			wantState: StateDeleted,
		},
		{
			name:      "ready to deleted",
			start:     Snapshot{State: StateReady, Conversation: conv},
			event:     deletedEvent{},
			wantState: StateDeleted,
		},
		{
			name:      "deleted is terminal",
			start:     Snapshot{State: StateDeleted},
			event:     deletedEvent{},
			wantState: StateDeleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apply(tt.start, tt.event)
			assert.Equal(t, tt.wantState, got.State)
			assert.Len(t, got.Transcript, tt.wantLen)
		})
	}
}

func TestApplyDropsMalformedRowsOnLoad(t *testing.T) {
	conv := testConversation()
	good := messageAt(conv, buyerID, "keep me", 1, false)
	noID := Message{ConversationID: conv.ID, SenderID: sellerID, Body: "no id"}
	wrongConv := messageAt(testConversation(), sellerID, "other conversation", 2, false)
	stranger := messageAt(conv, uuid.New(), "not a participant", 3, false)

	got := apply(Snapshot{State: StateLoading}, loadedEvent{
		conversation: conv,
		messages:     []Message{good, noID, wrongConv, stranger},
	})

	assert.Equal(t, StateReady, got.State)
	assert.Len(t, got.Transcript, 1)
	assert.Equal(t, good.ID, got.Transcript[0].ID)
}

func TestApplyDeduplicatesById(t *testing.T) {
	conv := testConversation()
	msg := messageAt(conv, sellerID, "once", 1, false)

	snap := apply(Snapshot{State: StateLoading}, loadedEvent{conversation: conv, messages: []Message{msg}})
	snap = apply(snap, appendEvent{message: msg})

	assert.Len(t, snap.Transcript, 1)
}

func TestApplyDoesNotMutatePreviousSnapshot(t *testing.T) {
	conv := testConversation()
	snap := apply(Snapshot{State: StateLoading}, loadedEvent{conversation: conv})

	grown := apply(snap, appendEvent{message: messageAt(conv, buyerID, "new", 1, false)})
	assert.Len(t, snap.Transcript, 0)
	assert.Len(t, grown.Transcript, 1)
}

func TestApplyLoadFailedKeepsError(t *testing.T) {
	cause := errors.New("boom")
	got := apply(Snapshot{State: StateLoading}, loadFailedEvent{err: cause})
	assert.Equal(t, StateError, got.State)
	assert.ErrorIs(t, got.Err, cause)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "deleted", StateDeleted.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestTruncateBody(t *testing.T) {
	assert.Equal(t, "short", truncateBody("  short  "))

	long := make([]rune, 0, 120)
	for i := 0; i < 120; i++ {
		long = append(long, 'x')
	}
	got := truncateBody(string(long))
	assert.Len(t, []rune(got), previewMaxLen)
}
