package audit

import (
	"errors"
	"fmt"

	"deafauth/backend/internal/audit/domain"
	sessiondomain "deafauth/backend/internal/session/domain"
)

// ErrInconsistentLog is returned when an event's state_from does not match the
// state reached by the preceding events.
var ErrInconsistentLog = errors.New("audit log is inconsistent")

// Replay folds a session's ordered events from StateInitial and returns the
// resulting state. Every event's StateFrom must equal the state immediately
// before it (nil StateFrom is allowed only while still in StateInitial, for
// the session-creation event).
func Replay(events []*domain.AuthEvent) (sessiondomain.AuthState, error) {
	state := sessiondomain.StateInitial
	for i, e := range events {
		if e.StateFrom == nil {
			if state != sessiondomain.StateInitial {
				return state, fmt.Errorf("%w: event %d has no state_from after state %s", ErrInconsistentLog, i, state)
			}
		} else if *e.StateFrom != state {
			return state, fmt.Errorf("%w: event %d expects state_from %s, log is at %s", ErrInconsistentLog, i, *e.StateFrom, state)
		}
		if !e.StateTo.Valid() {
			return state, fmt.Errorf("%w: event %d has unknown state_to %q", ErrInconsistentLog, i, e.StateTo)
		}
		state = e.StateTo
	}
	return state, nil
}
