package domain

import "time"

// AuthState is the phase of an authentication session's lifecycle.
type AuthState string

const (
	StateInitial                 AuthState = "INITIAL"
	StateIdentifyingUser         AuthState = "IDENTIFYING_USER"
	StateAwaitingASLVerification AuthState = "AWAITING_ASL_VERIFICATION"
	StateProcessingASL           AuthState = "PROCESSING_ASL"
	StateASLVerificationFailed   AuthState = "ASL_VERIFICATION_FAILED"
	StateAwaitingOTPEntry        AuthState = "AWAITING_OTP_ENTRY"
	StateVerifyingOTP            AuthState = "VERIFYING_OTP"
	StateAuthenticated           AuthState = "AUTHENTICATED"
	StateAuthenticationFailed    AuthState = "AUTHENTICATION_FAILED"
	StateSessionExpired          AuthState = "SESSION_EXPIRED"
)

// States lists every AuthState. The set is closed; Valid rejects anything else.
var States = []AuthState{
	StateInitial,
	StateIdentifyingUser,
	StateAwaitingASLVerification,
	StateProcessingASL,
	StateASLVerificationFailed,
	StateAwaitingOTPEntry,
	StateVerifyingOTP,
	StateAuthenticated,
	StateAuthenticationFailed,
	StateSessionExpired,
}

// Valid reports whether s is a member of the closed AuthState set.
func (s AuthState) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing edges. A session in a terminal
// state is immutable.
func (s AuthState) Terminal() bool {
	switch s {
	case StateAuthenticated, StateAuthenticationFailed, StateSessionExpired:
		return true
	}
	return false
}

// ClientInfo describes the client that opened the session.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	Platform  string
}

// AuthSession is the durable session record. It is created in StateInitial and
// mutated only through the state machine; once CurrentState is terminal the
// record must not change again.
type AuthSession struct {
	ID           string
	UserID       string // empty until the user has been identified
	CurrentState AuthState
	StartedAt    time.Time
	CompletedAt  *time.Time // set when a terminal state is reached
	Metadata     map[string]string
	Client       ClientInfo
}

// Context is the in-memory state machine context: the durable session plus
// transient scratch fields. The transient fields (attempt counters, the
// one-time code hash, the last error message) are not part of the durable
// session record; OTPCodeHash holds only a bcrypt hash, never the plaintext.
type Context struct {
	Session     AuthSession
	ASLAttempts int
	OTPAttempts int
	OTPCodeHash string
	LastError   string
}

// Clone returns a deep copy of the context so transitions can return a new
// value without aliasing the caller's metadata map.
func (c Context) Clone() Context {
	out := c
	if c.Session.Metadata != nil {
		out.Session.Metadata = make(map[string]string, len(c.Session.Metadata))
		for k, v := range c.Session.Metadata {
			out.Session.Metadata[k] = v
		}
	}
	if c.Session.CompletedAt != nil {
		t := *c.Session.CompletedAt
		out.Session.CompletedAt = &t
	}
	return out
}
