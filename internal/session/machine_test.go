package session

import (
	"errors"
	"testing"

	"deafauth/backend/internal/attempts"
	"deafauth/backend/internal/session/domain"
)

func newTestMachine() *Machine {
	return NewMachine(attempts.NewTracker(3), attempts.NewTracker(3))
}

func ctxIn(state domain.AuthState) domain.Context {
	return domain.Context{
		Session: domain.AuthSession{
			ID:           "sess-1",
			UserID:       "user-1",
			CurrentState: state,
		},
	}
}

func TestTransition_LegalEdges(t *testing.T) {
	m := newTestMachine()

	cases := []struct {
		from  domain.AuthState
		event EventType
		want  domain.AuthState
	}{
		{domain.StateInitial, EventUserIdentified, domain.StateIdentifyingUser},
		{domain.StateIdentifyingUser, EventIdentityFound, domain.StateAwaitingASLVerification},
		{domain.StateIdentifyingUser, EventNotFound, domain.StateAuthenticationFailed},
		{domain.StateAwaitingASLVerification, EventVideoSubmitted, domain.StateProcessingASL},
		{domain.StateProcessingASL, EventASLVerified, domain.StateAuthenticated},
		{domain.StateProcessingASL, EventASLRejected, domain.StateASLVerificationFailed},
		{domain.StateASLVerificationFailed, EventRetry, domain.StateAwaitingASLVerification},
		{domain.StateASLVerificationFailed, EventFallbackRequested, domain.StateAwaitingOTPEntry},
		{domain.StateASLVerificationFailed, EventMaxAttemptsExceeded, domain.StateAuthenticationFailed},
		{domain.StateAwaitingOTPEntry, EventOTPSubmitted, domain.StateVerifyingOTP},
		{domain.StateVerifyingOTP, EventOTPValid, domain.StateAuthenticated},
		{domain.StateVerifyingOTP, EventOTPInvalid, domain.StateAwaitingOTPEntry},
		{domain.StateVerifyingOTP, EventMaxAttemptsExceeded, domain.StateAuthenticationFailed},
	}
	for _, tc := range cases {
		next, event, err := m.Transition(ctxIn(tc.from), tc.event, nil)
		if err != nil {
			t.Fatalf("%s + %s: unexpected error: %v", tc.from, tc.event, err)
		}
		if next.Session.CurrentState != tc.want {
			t.Errorf("%s + %s: state = %s, want %s", tc.from, tc.event, next.Session.CurrentState, tc.want)
		}
		if event == nil {
			t.Fatalf("%s + %s: no event produced", tc.from, tc.event)
		}
		if event.StateFrom == nil || *event.StateFrom != tc.from {
			t.Errorf("%s + %s: event.StateFrom = %v, want %s", tc.from, tc.event, event.StateFrom, tc.from)
		}
		if event.StateTo != tc.want {
			t.Errorf("%s + %s: event.StateTo = %s, want %s", tc.from, tc.event, event.StateTo, tc.want)
		}
		if event.EventType != string(tc.event) {
			t.Errorf("%s + %s: event.EventType = %s", tc.from, tc.event, event.EventType)
		}
	}
}

func TestTransition_TTLElapsedFromEveryNonTerminalState(t *testing.T) {
	m := newTestMachine()
	for _, s := range domain.States {
		_, _, err := m.Transition(ctxIn(s), EventTTLElapsed, nil)
		if s.Terminal() {
			if err == nil {
				t.Errorf("%s: ttl_elapsed accepted from terminal state", s)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: ttl_elapsed rejected: %v", s, err)
		}
	}
}

func TestTransition_InvalidEdgeLeavesContextUnchanged(t *testing.T) {
	m := newTestMachine()
	in := ctxIn(domain.StateInitial)
	in.ASLAttempts = 1

	next, event, err := m.Transition(in, EventOTPValid, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if event != nil {
		t.Fatal("event produced for rejected transition")
	}
	if next.Session.CurrentState != domain.StateInitial || next.ASLAttempts != 1 {
		t.Errorf("context mutated on rejection: %+v", next)
	}
}

func TestTransition_TerminalStatesAcceptNothing(t *testing.T) {
	m := newTestMachine()
	events := []EventType{
		EventUserIdentified, EventIdentityFound, EventNotFound,
		EventVideoSubmitted, EventASLVerified, EventASLRejected,
		EventRetry, EventFallbackRequested, EventMaxAttemptsExceeded,
		EventOTPSubmitted, EventOTPValid, EventOTPInvalid, EventTTLElapsed,
	}
	for _, s := range []domain.AuthState{domain.StateAuthenticated, domain.StateAuthenticationFailed} {
		for _, e := range events {
			if _, _, err := m.Transition(ctxIn(s), e, nil); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s + %s: err = %v, want ErrInvalidTransition", s, e, err)
			}
		}
	}
	for _, e := range events {
		if _, _, err := m.Transition(ctxIn(domain.StateSessionExpired), e, nil); !errors.Is(err, ErrSessionExpired) {
			t.Errorf("SESSION_EXPIRED + %s: err = %v, want ErrSessionExpired", e, err)
		}
	}
}

func TestTransition_RetryGuard(t *testing.T) {
	m := NewMachine(attempts.NewTracker(2), attempts.NewTracker(2))

	in := ctxIn(domain.StateASLVerificationFailed)
	in.ASLAttempts = 1
	if _, _, err := m.Transition(in, EventRetry, nil); err != nil {
		t.Fatalf("retry below ceiling rejected: %v", err)
	}

	in.ASLAttempts = 2
	_, _, err := m.Transition(in, EventRetry, nil)
	if !errors.Is(err, ErrAttemptLimitExceeded) {
		t.Fatalf("retry at ceiling: err = %v, want ErrAttemptLimitExceeded", err)
	}
	// Fallback and terminal failure stay legal at the ceiling.
	if _, _, err := m.Transition(in, EventFallbackRequested, nil); err != nil {
		t.Errorf("fallback at ceiling rejected: %v", err)
	}
	if _, _, err := m.Transition(in, EventMaxAttemptsExceeded, nil); err != nil {
		t.Errorf("terminal failure at ceiling rejected: %v", err)
	}
}

func TestTransition_OTPGuard(t *testing.T) {
	m := NewMachine(attempts.NewTracker(3), attempts.NewTracker(2))

	in := ctxIn(domain.StateVerifyingOTP)
	in.OTPAttempts = 2
	_, _, err := m.Transition(in, EventOTPInvalid, nil)
	if !errors.Is(err, ErrAttemptLimitExceeded) {
		t.Fatalf("otp_invalid at ceiling: err = %v, want ErrAttemptLimitExceeded", err)
	}
	if _, _, err := m.Transition(in, EventMaxAttemptsExceeded, nil); err != nil {
		t.Errorf("terminal failure at otp ceiling rejected: %v", err)
	}
}

func TestTransition_SetsCompletedAtOnTerminal(t *testing.T) {
	m := newTestMachine()

	next, _, err := m.Transition(ctxIn(domain.StateProcessingASL), EventASLVerified, nil)
	if err != nil {
		t.Fatal(err)
	}
	if next.Session.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal transition")
	}

	next, _, err = m.Transition(ctxIn(domain.StateInitial), EventUserIdentified, nil)
	if err != nil {
		t.Fatal(err)
	}
	if next.Session.CompletedAt != nil {
		t.Error("CompletedAt set on non-terminal transition")
	}
}

func TestTransition_DoesNotShareContextState(t *testing.T) {
	m := newTestMachine()
	in := ctxIn(domain.StateInitial)
	in.Session.Metadata = map[string]string{"k": "v"}

	next, _, err := m.Transition(in, EventUserIdentified, nil)
	if err != nil {
		t.Fatal(err)
	}
	next.Session.Metadata["k"] = "changed"
	if in.Session.Metadata["k"] != "v" {
		t.Error("input context metadata mutated through the returned context")
	}
}

func TestCanTransition(t *testing.T) {
	m := newTestMachine()
	if !m.CanTransition(domain.StateASLVerificationFailed, EventFallbackRequested) {
		t.Error("fallback_requested edge missing from ASL_VERIFICATION_FAILED")
	}
	if m.CanTransition(domain.StateAuthenticated, EventRetry) {
		t.Error("retry edge reported from AUTHENTICATED")
	}
}
