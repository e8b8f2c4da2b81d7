// Package attempts enforces retry ceilings for verification flows.
package attempts

// DefaultMaxAttempts is the retry ceiling used when none is configured.
const DefaultMaxAttempts = 3

// Tracker counts verification failures against a fixed ceiling. The counters
// themselves live on the session context; Tracker only owns the ceiling and
// the arithmetic, so one Tracker serves any number of sessions concurrently.
type Tracker struct {
	max int
}

// NewTracker returns a Tracker with the given ceiling. Non-positive values
// fall back to DefaultMaxAttempts.
func NewTracker(max int) *Tracker {
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	return &Tracker{max: max}
}

// Max returns the configured ceiling.
func (t *Tracker) Max() int { return t.max }

// Fail returns the counter after one more failed verification. Counters are
// monotonic and clamp at the ceiling; they never grow past it once a terminal
// failure state is reachable.
func (t *Tracker) Fail(count int) int {
	if count < 0 {
		count = 0
	}
	if count >= t.max {
		return t.max
	}
	return count + 1
}

// BelowMax reports whether another retry is still allowed. The state machine
// consults this before permitting a retry edge; at the ceiling only the
// terminal-failure edge remains legal.
func (t *Tracker) BelowMax(count int) bool {
	return count < t.max
}
