package domain

import (
	"time"

	sessiondomain "deafauth/backend/internal/session/domain"
)

// AuthEvent is one immutable audit record of a session state transition.
// Events are append-only: never updated or deleted. Replaying a session's
// ordered events from StateInitial reconstructs its current state.
type AuthEvent struct {
	ID        string
	SessionID string
	EventType string
	// StateFrom is nil for the session-creation event only.
	StateFrom *sessiondomain.AuthState
	StateTo   sessiondomain.AuthState
	Data      map[string]string
	CreatedAt time.Time
}
