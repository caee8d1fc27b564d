package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is the reason inside an AuthError when the
	// server rejects the identifier/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetwork is the reason when the request never produced a server
	// response.
	ErrNetwork = errors.New("network error")
)

// AuthError is returned as a value from Login; callers must check it before
// assuming a session exists.
type AuthError struct {
	Reason  error
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth: %s", e.Message)
	}
	return fmt.Sprintf("auth: %v", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Reason }

// FetchError wraps any failed read. It is always non-fatal: stores keep
// their previous contents when one of these comes back.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// SendError wraps a failed message send; the caller resolves the optimistic
// placeholder for the affected conversation.
type SendError struct {
	ConversationID string
	Err            error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to conversation %s: %v", e.ConversationID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
