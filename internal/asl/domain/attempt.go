package domain

import "time"

// VerificationAttempt records one ASL video verification outcome for a
// session. AttemptNumber is 1-based and monotonic per session.
type VerificationAttempt struct {
	ID               string
	SessionID        string
	Success          bool
	Confidence       float64 // intended range 0..1
	AttemptNumber    int
	VerificationData string // opaque verdict payload from the recognition service
	CreatedAt        time.Time
}
