package chat

import "errors"

var (
	// ErrNotFound means the conversation id does not resolve to a row.
	ErrNotFound = errors.New("conversation not found")
	// ErrAccessDenied means the principal is neither buyer nor seller.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotReady is returned by operations that need a loaded session.
	ErrNotReady = errors.New("conversation not loaded")
	// ErrEmptyBody rejects whitespace-only sends.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrSendInFlight enforces the single-flight send guard.
	ErrSendInFlight = errors.New("a send is already in flight")
	// ErrClosed means the session has been torn down.
	ErrClosed = errors.New("session closed")

	// ErrSendFailed wraps a failed insert; the draft is restored.
	ErrSendFailed = errors.New("send failed")
	// ErrDeleteFailed wraps a failed conversation delete; the session
	// remains usable.
	ErrDeleteFailed = errors.New("delete failed")
)
