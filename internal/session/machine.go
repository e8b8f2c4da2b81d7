// Package session implements the authoritative session lifecycle state
// machine. Legal edges are enumerated in an explicit (state, event) table so
// illegal transitions are checkable rather than inferred.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"deafauth/backend/internal/attempts"
	auditdomain "deafauth/backend/internal/audit/domain"
	"deafauth/backend/internal/session/domain"
)

// Sentinel errors for transitions. Callers branch with errors.Is; none of
// these mutate the context or append an event.
var (
	// ErrInvalidTransition is returned for an event that has no edge from the
	// current state. Recoverable: the context is unchanged.
	ErrInvalidTransition = errors.New("invalid transition for current state")
	// ErrAttemptLimitExceeded is returned when a retry edge is requested at the
	// attempt ceiling; only the terminal-failure edge remains legal.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrSessionExpired is returned for any event on an expired session.
	ErrSessionExpired = errors.New("session expired")
)

// EventType names a state machine input.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventUserIdentified      EventType = "user_identified"
	EventIdentityFound       EventType = "identity_found"
	EventNotFound            EventType = "not_found"
	EventVideoSubmitted      EventType = "video_submitted"
	EventASLVerified         EventType = "asl_verified"
	EventASLRejected         EventType = "asl_rejected"
	EventRetry               EventType = "retry"
	EventFallbackRequested   EventType = "fallback_requested"
	EventMaxAttemptsExceeded EventType = "max_attempts_exceeded"
	EventOTPSubmitted        EventType = "otp_submitted"
	EventOTPValid            EventType = "otp_valid"
	EventOTPInvalid          EventType = "otp_invalid"
	EventTTLElapsed          EventType = "ttl_elapsed"
)

type guard int

const (
	guardNone guard = iota
	guardASLBelowMax
	guardOTPBelowMax
)

type edge struct {
	from  domain.AuthState
	event EventType
}

type rule struct {
	to    domain.AuthState
	guard guard
}

// transitions is the full legal-edge table. Every edge the machine accepts is
// listed here; EventTTLElapsed edges from each non-terminal state are added in
// init so expiry is legal exactly where the state is non-terminal.
var transitions = map[edge]rule{
	{domain.StateInitial, EventUserIdentified}:                      {to: domain.StateIdentifyingUser},
	{domain.StateIdentifyingUser, EventIdentityFound}:               {to: domain.StateAwaitingASLVerification},
	{domain.StateIdentifyingUser, EventNotFound}:                    {to: domain.StateAuthenticationFailed},
	{domain.StateAwaitingASLVerification, EventVideoSubmitted}:      {to: domain.StateProcessingASL},
	{domain.StateProcessingASL, EventASLVerified}:                   {to: domain.StateAuthenticated},
	{domain.StateProcessingASL, EventASLRejected}:                   {to: domain.StateASLVerificationFailed},
	{domain.StateASLVerificationFailed, EventRetry}:                 {to: domain.StateAwaitingASLVerification, guard: guardASLBelowMax},
	{domain.StateASLVerificationFailed, EventFallbackRequested}:     {to: domain.StateAwaitingOTPEntry},
	{domain.StateASLVerificationFailed, EventMaxAttemptsExceeded}:   {to: domain.StateAuthenticationFailed},
	{domain.StateAwaitingOTPEntry, EventOTPSubmitted}:               {to: domain.StateVerifyingOTP},
	{domain.StateVerifyingOTP, EventOTPValid}:                       {to: domain.StateAuthenticated},
	{domain.StateVerifyingOTP, EventOTPInvalid}:                     {to: domain.StateAwaitingOTPEntry, guard: guardOTPBelowMax},
	{domain.StateVerifyingOTP, EventMaxAttemptsExceeded}:            {to: domain.StateAuthenticationFailed},
}

func init() {
	for _, s := range domain.States {
		if s.Terminal() {
			continue
		}
		transitions[edge{s, EventTTLElapsed}] = rule{to: domain.StateSessionExpired}
	}
}

// Machine validates events against the transition table and produces the next
// context plus the audit event for the transition. Machines are stateless and
// safe for concurrent use; per-session serialization is the caller's job.
type Machine struct {
	aslLimit *attempts.Tracker
	otpLimit *attempts.Tracker
	nowF     func() time.Time
}

// NewMachine returns a Machine whose retry guards consult the given trackers.
// Nil trackers fall back to the default ceiling.
func NewMachine(aslLimit, otpLimit *attempts.Tracker) *Machine {
	if aslLimit == nil {
		aslLimit = attempts.NewTracker(0)
	}
	if otpLimit == nil {
		otpLimit = attempts.NewTracker(0)
	}
	return &Machine{
		aslLimit: aslLimit,
		otpLimit: otpLimit,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Transition applies eventType to ctx. On success it returns a new context
// with the state advanced and the AuthEvent recording the edge; exactly one
// event per successful transition. On rejection the input context is returned
// unchanged and no event is produced.
func (m *Machine) Transition(ctx domain.Context, eventType EventType, eventData map[string]string) (domain.Context, *auditdomain.AuthEvent, error) {
	from := ctx.Session.CurrentState
	if !from.Valid() {
		return ctx, nil, ErrInvalidTransition
	}
	if from == domain.StateSessionExpired {
		return ctx, nil, ErrSessionExpired
	}
	r, ok := transitions[edge{from, eventType}]
	if !ok {
		return ctx, nil, ErrInvalidTransition
	}
	switch r.guard {
	case guardASLBelowMax:
		if !m.aslLimit.BelowMax(ctx.ASLAttempts) {
			return ctx, nil, ErrAttemptLimitExceeded
		}
	case guardOTPBelowMax:
		if !m.otpLimit.BelowMax(ctx.OTPAttempts) {
			return ctx, nil, ErrAttemptLimitExceeded
		}
	}

	now := m.nowF()
	next := ctx.Clone()
	next.Session.CurrentState = r.to
	if r.to.Terminal() && next.Session.CompletedAt == nil {
		t := now
		next.Session.CompletedAt = &t
	}

	stateFrom := from
	event := &auditdomain.AuthEvent{
		ID:        uuid.New().String(),
		SessionID: ctx.Session.ID,
		EventType: string(eventType),
		StateFrom: &stateFrom,
		StateTo:   r.to,
		Data:      eventData,
		CreatedAt: now,
	}
	return next, event, nil
}

// CanTransition reports whether eventType has an edge from the current state,
// ignoring attempt guards. Used by callers to offer retry affordances.
func (m *Machine) CanTransition(state domain.AuthState, eventType EventType) bool {
	_, ok := transitions[edge{state, eventType}]
	return ok
}
