package chat

// State is the session lifecycle phase. A session only ever moves forward:
// Loading -> Error or Ready, Ready -> Ready on every send/receive, and
// Ready -> Deleted once. There is no way back to Loading without a new
// session.
type State int

const (
	StateLoading State = iota
	StateError
	StateReady
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	case StateReady:
		return "ready"
	case StateDeleted:
		return "deleted"
	}
	return "unknown"
}

// Snapshot is an immutable view of session state. The transcript preserves
// insertion order, which equals chronological order.
type Snapshot struct {
	State        State
	Err          error
	Conversation Conversation
	Other        Identity
	Transcript   []Message
}

type event interface{ isEvent() }

type loadedEvent struct {
	conversation Conversation
	other        Identity
	messages     []Message
}

type loadFailedEvent struct{ err error }

type appendEvent struct{ message Message }

type deletedEvent struct{}

func (loadedEvent) isEvent()     {}
func (loadFailedEvent) isEvent() {}
func (appendEvent) isEvent()     {}
func (deletedEvent) isEvent()    {}

// apply is the pure transition function. It never mutates its input: the
// returned snapshot shares no transcript backing array with the previous
// one when the transcript changes.
func apply(snap Snapshot, ev event) Snapshot {
	switch e := ev.(type) {
	case loadedEvent:
		if snap.State != StateLoading {
			return snap
		}
		transcript := make([]Message, 0, len(e.messages))
		for _, m := range e.messages {
			if m.validFor(e.conversation) {
				transcript = append(transcript, m)
			}
		}
		return Snapshot{
			State:        StateReady,
			Conversation: e.conversation,
			Other:        e.other,
			Transcript:   transcript,
		}

	case loadFailedEvent:
		if snap.State != StateLoading {
			return snap
		}
		return Snapshot{State: StateError, Err: e.err}

	case appendEvent:
		if snap.State != StateReady {
			return snap
		}
		if !e.message.validFor(snap.Conversation) {
			return snap
		}
		for _, m := range snap.Transcript {
			if m.ID == e.message.ID {
				return snap
			}
		}
		next := snap
		next.Transcript = make([]Message, len(snap.Transcript), len(snap.Transcript)+1)
		copy(next.Transcript, snap.Transcript)
		next.Transcript = append(next.Transcript, e.message)
		return next

	case deletedEvent:
		if snap.State != StateReady {
			return snap
		}
		next := snap
		next.State = StateDeleted
		return next
	}
	return snap
}
