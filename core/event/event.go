// Package event carries lifecycle notifications from the engine to the host
// application: account creation, session creation and teardown. Delivery is
// best-effort; an operation never fails because nobody is listening.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event wraps a payload with identity and timing metadata.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates an Event with a generated ID and the payload's type name.
func New(payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      nameOf(payload),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

func nameOf(payload any) string {
	switch payload.(type) {
	case AccountCreated:
		return "AccountCreated"
	case SessionCreated:
		return "SessionCreated"
	case SessionDeleted:
		return "SessionDeleted"
	case AllSessionsDeleted:
		return "AllSessionsDeleted"
	default:
		return "Unknown"
	}
}

// AccountCreated is emitted after a successful registration.
type AccountCreated struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// SessionCreated is emitted when a login or ticket claim produces a session.
type SessionCreated struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// SessionDeleted is emitted on logout and single-session revocation.
type SessionDeleted struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// AllSessionsDeleted is emitted on revoke-all, account disable, and deletion.
// ExceptSessionID is set when the caller's own session was kept.
type AllSessionsDeleted struct {
	UserID          string `json:"user_id"`
	ExceptSessionID string `json:"except_session_id,omitempty"`
}
