// Package flow orchestrates the authentication lifecycle: it owns per-session
// serialization, drives the state machine, consults the external identity and
// ASL recognition backends, and persists sessions, events, and attempts.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deafauth/backend/internal/asl"
	asldomain "deafauth/backend/internal/asl/domain"
	aslrepo "deafauth/backend/internal/asl/repository"
	"deafauth/backend/internal/attempts"
	"deafauth/backend/internal/audit"
	auditdomain "deafauth/backend/internal/audit/domain"
	"deafauth/backend/internal/challenge"
	challengedomain "deafauth/backend/internal/challenge/domain"
	"deafauth/backend/internal/identity"
	"deafauth/backend/internal/otp"
	"deafauth/backend/internal/security"
	"deafauth/backend/internal/session"
	sessiondomain "deafauth/backend/internal/session/domain"
	sessionrepo "deafauth/backend/internal/session/repository"
	"deafauth/backend/internal/telemetry"
)

// Sentinel errors for flow operations; the session machine's sentinels
// (session.ErrInvalidTransition, session.ErrAttemptLimitExceeded,
// session.ErrSessionExpired) pass through unchanged.
var (
	// ErrSessionNotFound is returned when no session exists for the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrExternalService wraps identity/recognition backend failures. The
	// session state is never mutated on this error; the call may be retried.
	ErrExternalService = errors.New("external service failure")
)

// AuthMethod values recorded on issued tokens.
const (
	AuthMethodASL         = "asl"
	AuthMethodOTPFallback = "otp_fallback"
)

// CodeSender delivers a one-time fallback code to the user over an accessible
// channel (e.g. SMS or email relay). Implementations must not log the code.
type CodeSender interface {
	Send(ctx context.Context, userID, code string) error
}

// ASLOutcome is the result of one video submission.
type ASLOutcome struct {
	Verdict asl.VerifyResponse
	State   sessiondomain.AuthState
	// AccessToken is set when the submission completed authentication and a
	// token provider is configured.
	AccessToken string
}

// OTPOutcome is the result of one fallback code submission.
type OTPOutcome struct {
	Valid       bool
	State       sessiondomain.AuthState
	AccessToken string
}

// Service drives authentication sessions. Transitions for a given session are
// serialized behind a per-session lock; operations on different sessions run
// fully in parallel.
type Service struct {
	sessions sessionrepo.Repository
	attempts aslrepo.Repository
	recorder *audit.Recorder

	machine    *session.Machine
	aslLimit   *attempts.Tracker
	otpLimit   *attempts.Tracker
	engine     *challenge.Engine
	challenges challenge.Store

	identity identity.Backend
	verifier asl.Verifier
	sender   CodeSender

	hasher  *security.CodeHasher
	tokens  *security.TokenProvider
	metrics *telemetry.Metrics
	log     *zap.Logger

	sessionTTL    time.Duration
	challengeCfg  challenge.Config
	nowF          func() time.Time

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	contexts map[string]*sessiondomain.Context
	tries    map[string]int // verification attempts per live challenge id
}

// Options collects the Service dependencies. Sessions, Attempts, Recorder,
// Identity, and Verifier are required; the rest default sensibly.
type Options struct {
	Sessions   sessionrepo.Repository
	Attempts   aslrepo.Repository
	Recorder   *audit.Recorder
	Identity   identity.Backend
	Verifier   asl.Verifier
	Sender     CodeSender
	Hasher     *security.CodeHasher
	Tokens     *security.TokenProvider
	Metrics    *telemetry.Metrics
	Logger     *zap.Logger
	Challenges challenge.Store

	MaxASLAttempts int
	MaxOTPAttempts int
	SessionTTL     time.Duration
	ChallengeCfg   challenge.Config
}

// NewService wires a Service from opts.
func NewService(opts Options) *Service {
	aslLimit := attempts.NewTracker(opts.MaxASLAttempts)
	otpLimit := attempts.NewTracker(opts.MaxOTPAttempts)
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = security.NewCodeHasher(0)
	}
	store := opts.Challenges
	if store == nil {
		store = challenge.NewMemoryStore()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		sessions:     opts.Sessions,
		attempts:     opts.Attempts,
		recorder:     opts.Recorder,
		machine:      session.NewMachine(aslLimit, otpLimit),
		aslLimit:     aslLimit,
		otpLimit:     otpLimit,
		engine:       challenge.NewEngine(),
		challenges:   store,
		identity:     opts.Identity,
		verifier:     opts.Verifier,
		sender:       opts.Sender,
		hasher:       hasher,
		tokens:       opts.Tokens,
		metrics:      opts.Metrics,
		log:          log,
		sessionTTL:   ttl,
		challengeCfg: opts.ChallengeCfg,
		nowF:         func() time.Time { return time.Now().UTC() },
		locks:        make(map[string]*sync.Mutex),
		contexts:     make(map[string]*sessiondomain.Context),
		tries:        make(map[string]int),
	}
}

// StartSession creates a session in the initial state and appends its
// creation event (the only event with no state_from).
func (s *Service) StartSession(ctx context.Context, client sessiondomain.ClientInfo, metadata map[string]string) (*sessiondomain.AuthSession, error) {
	now := s.nowF()
	sess := sessiondomain.AuthSession{
		ID:           uuid.New().String(),
		CurrentState: sessiondomain.StateInitial,
		StartedAt:    now,
		Metadata:     metadata,
		Client:       client,
	}
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return nil, err
	}
	if err := s.recorder.Record(ctx, newCreationEvent(sess.ID, now), ""); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.contexts[sess.ID] = &sessiondomain.Context{Session: sess}
	s.mu.Unlock()
	return &sess, nil
}

// IdentifyUser submits credentials for the session. Re-entrant after an
// external failure: the user_identified edge fires once, and the backend call
// is retried from IDENTIFYING_USER without further state mutation.
func (s *Service) IdentifyUser(ctx context.Context, sessionID, email, password string) (*sessiondomain.AuthSession, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sctx, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sctx.Session.CurrentState == sessiondomain.StateInitial {
		if _, err := s.applyLocked(ctx, sctx, session.EventUserIdentified, nil); err != nil {
			return nil, err
		}
	} else if sctx.Session.CurrentState != sessiondomain.StateIdentifyingUser {
		return nil, session.ErrInvalidTransition
	}

	result, err := s.identity.Identify(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("%w: identity backend: %v", ErrExternalService, err)
	}
	if !result.Found {
		if _, err := s.applyLocked(ctx, sctx, session.EventNotFound, nil); err != nil {
			return nil, err
		}
		snap := sctx.Session
		return &snap, nil
	}
	sctx.Session.UserID = result.UserID
	if err := s.sessions.SetUser(ctx, sessionID, result.UserID); err != nil {
		return nil, err
	}
	if _, err := s.applyLocked(ctx, sctx, session.EventIdentityFound, nil); err != nil {
		return nil, err
	}
	snap := sctx.Session
	return &snap, nil
}

// SubmitASLVideo sends the video to the recognition service and advances the
// session on the verdict. The external call happens before any transition so
// backend failures leave the session in AWAITING_ASL_VERIFICATION, retryable.
// Overall success requires both the sign-content and face-detection signals.
func (s *Service) SubmitASLVideo(ctx context.Context, sessionID, videoDataURI string, expectedSigns []string) (*ASLOutcome, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sctx, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sctx.Session.CurrentState != sessiondomain.StateAwaitingASLVerification {
		return nil, session.ErrInvalidTransition
	}

	verdict, err := s.verifier.Verify(ctx, asl.VerifyRequest{
		VideoDataURI:  videoDataURI,
		ExpectedSigns: expectedSigns,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: asl service: %v", ErrExternalService, err)
	}

	if _, err := s.applyLocked(ctx, sctx, session.EventVideoSubmitted, nil); err != nil {
		return nil, err
	}

	accepted := verdict.Accepted()
	attemptNumber := sctx.ASLAttempts + 1
	if err := s.recordAttempt(ctx, sessionID, attemptNumber, verdict); err != nil {
		s.log.Warn("flow: recording asl attempt failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	out := &ASLOutcome{Verdict: verdict}
	if accepted {
		if _, err := s.applyLocked(ctx, sctx, session.EventASLVerified, nil); err != nil {
			return nil, err
		}
		sctx.LastError = ""
		token, err := s.issueToken(sctx, AuthMethodASL)
		if err != nil {
			return nil, err
		}
		out.AccessToken = token
	} else {
		sctx.ASLAttempts = s.aslLimit.Fail(sctx.ASLAttempts)
		sctx.LastError = verdict.Message
		data := map[string]string{"attempt": strconv.Itoa(sctx.ASLAttempts)}
		if _, err := s.applyLocked(ctx, sctx, session.EventASLRejected, data); err != nil {
			return nil, err
		}
	}
	out.State = sctx.Session.CurrentState
	return out, nil
}

// RequestRetry re-arms ASL verification after a rejection. Legal only below
// the attempt ceiling; at the ceiling it returns ErrAttemptLimitExceeded and
// forces the terminal failure state.
func (s *Service) RequestRetry(ctx context.Context, sessionID string) (*sessiondomain.AuthSession, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sctx, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.applyLocked(ctx, sctx, session.EventRetry, nil); err != nil {
		if errors.Is(err, session.ErrAttemptLimitExceeded) {
			if _, ferr := s.applyLocked(ctx, sctx, session.EventMaxAttemptsExceeded, nil); ferr != nil {
				return nil, ferr
			}
		}
		snap := sctx.Session
		return &snap, err
	}
	snap := sctx.Session
	return &snap, nil
}

// RequestFallback switches a failed ASL session to the OTP fallback flow,
// generating and delivering a one-time code. Only the bcrypt hash of the code
// is retained, in the transient context.
func (s *Service) RequestFallback(ctx context.Context, sessionID string) (*sessiondomain.AuthSession, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sctx, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.machine.CanTransition(sctx.Session.CurrentState, session.EventFallbackRequested) {
		return nil, session.ErrInvalidTransition
	}
	code, err := otp.GenerateCode()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, err
	}
	if s.sender != nil {
		if err := s.sender.Send(ctx, sctx.Session.UserID, code); err != nil {
			return nil, fmt.Errorf("%w: code delivery: %v", ErrExternalService, err)
		}
	}
	if _, err := s.applyLocked(ctx, sctx, session.EventFallbackRequested, nil); err != nil {
		return nil, err
	}
	sctx.OTPCodeHash = hash
	sctx.OTPAttempts = 0
	snap := sctx.Session
	return &snap, nil
}

// SubmitOTP verifies a fallback code. Invalid codes consume an attempt; at
// the ceiling the session is forced into the terminal failure state.
func (s *Service) SubmitOTP(ctx context.Context, sessionID, code string) (*OTPOutcome, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sctx, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.applyLocked(ctx, sctx, session.EventOTPSubmitted, nil); err != nil {
		return nil, err
	}

	out := &OTPOutcome{}
	if sctx.OTPCodeHash != "" && s.hasher.Compare(sctx.OTPCodeHash, code) == nil {
		if _, err := s.applyLocked(ctx, sctx, session.EventOTPValid, nil); err != nil {
			return nil, err
		}
		sctx.OTPCodeHash = ""
		sctx.LastError = ""
		token, err := s.issueToken(sctx, AuthMethodOTPFallback)
		if err != nil {
			return nil, err
		}
		out.Valid = true
		out.AccessToken = token
	} else {
		sctx.OTPAttempts = s.otpLimit.Fail(sctx.OTPAttempts)
		sctx.LastError = "invalid one-time code"
		data := map[string]string{"attempt": strconv.Itoa(sctx.OTPAttempts)}
		if s.otpLimit.BelowMax(sctx.OTPAttempts) {
			if _, err := s.applyLocked(ctx, sctx, session.EventOTPInvalid, data); err != nil {
				return nil, err
			}
		} else {
			if _, err := s.applyLocked(ctx, sctx, session.EventMaxAttemptsExceeded, data); err != nil {
				return nil, err
			}
		}
	}
	out.State = sctx.Session.CurrentState
	return out, nil
}

// Expire fires ttl_elapsed for the session regardless of remaining TTL, e.g.
// on explicit sign-out of an unfinished flow.
func (s *Service) Expire(ctx context.Context, sessionID string) (*sessiondomain.AuthSession, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sctx, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.applyLocked(ctx, sctx, session.EventTTLElapsed, nil); err != nil {
		return nil, err
	}
	snap := sctx.Session
	return &snap, nil
}

// IssueChallenge generates and stores a visual challenge of the given type.
func (s *Service) IssueChallenge(ctx context.Context, t challengedomain.Type) (challengedomain.VisualChallenge, error) {
	c, err := s.engine.Generate(t, s.challengeCfg)
	if err != nil {
		return challengedomain.VisualChallenge{}, err
	}
	if err := s.challenges.Put(ctx, c); err != nil {
		return challengedomain.VisualChallenge{}, err
	}
	return c, nil
}

// VerifyChallenge evaluates a response against a stored challenge. Missing or
// expired challenges fail with ErrChallengeExpired; issuing a new challenge is
// the recovery. Verified challenges are consumed.
func (s *Service) VerifyChallenge(ctx context.Context, challengeID string, resp challengedomain.Response) (challengedomain.Result, error) {
	c, ok, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		return challengedomain.Result{}, err
	}
	if !ok {
		s.mu.Lock()
		delete(s.tries, challengeID)
		s.mu.Unlock()
		return challengedomain.Result{}, challenge.ErrChallengeExpired
	}
	result := s.engine.Verify(c, resp)
	s.mu.Lock()
	s.tries[challengeID]++
	result.Attempts = s.tries[challengeID]
	if result.Verified {
		delete(s.tries, challengeID)
	}
	s.mu.Unlock()
	s.metrics.RecordVerification(ctx, string(c.Type), result.Verified)
	if result.Verified {
		if err := s.challenges.Delete(ctx, challengeID); err != nil {
			s.log.Warn("flow: deleting verified challenge failed", zap.String("challenge_id", challengeID), zap.Error(err))
		}
	}
	return result, nil
}

// ExtendChallenge pushes a stored challenge's deadline out by additional.
func (s *Service) ExtendChallenge(ctx context.Context, challengeID string, additional time.Duration) (challengedomain.VisualChallenge, error) {
	c, ok, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		return challengedomain.VisualChallenge{}, err
	}
	if !ok {
		return challengedomain.VisualChallenge{}, challenge.ErrChallengeExpired
	}
	extended := challenge.ExtendTimeout(c, additional)
	if err := s.challenges.Put(ctx, extended); err != nil {
		return challengedomain.VisualChallenge{}, err
	}
	return extended, nil
}

// lock returns the unlock func for the session's mutex, creating it on first
// use. Per-session serialization keeps the event log consistent with
// current_state; distinct sessions proceed in parallel.
func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	m, ok := s.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[sessionID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// loadLocked returns the session context, rebuilding it from storage when not
// cached (e.g. after a restart): the durable row plus the attempt count
// derived from the attempt log. TTL is checked lazily here; an elapsed
// session is expired before the caller's event is considered.
func (s *Service) loadLocked(ctx context.Context, sessionID string) (*sessiondomain.Context, error) {
	s.mu.Lock()
	sctx, ok := s.contexts[sessionID]
	s.mu.Unlock()
	if !ok {
		row, err := s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, ErrSessionNotFound
		}
		sctx = &sessiondomain.Context{Session: *row}
		if tries, err := s.attempts.ListBySession(ctx, sessionID); err == nil {
			for _, a := range tries {
				if !a.Success {
					sctx.ASLAttempts++
				}
			}
		}
		s.mu.Lock()
		s.contexts[sessionID] = sctx
		s.mu.Unlock()
	}
	if sctx.Session.CurrentState == sessiondomain.StateSessionExpired {
		return nil, session.ErrSessionExpired
	}
	if !sctx.Session.CurrentState.Terminal() && s.nowF().After(sctx.Session.StartedAt.Add(s.sessionTTL)) {
		if _, err := s.applyLocked(ctx, sctx, session.EventTTLElapsed, nil); err != nil {
			return nil, err
		}
		return nil, session.ErrSessionExpired
	}
	return sctx, nil
}

// applyLocked runs one machine transition and commits it: session row update,
// audit append, metrics. The caller holds the session lock.
func (s *Service) applyLocked(ctx context.Context, sctx *sessiondomain.Context, eventType session.EventType, data map[string]string) (*sessiondomain.Context, error) {
	next, event, err := s.machine.Transition(*sctx, eventType, data)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateState(ctx, &next.Session); err != nil {
		return nil, err
	}
	if err := s.recorder.Record(ctx, event, next.Session.UserID); err != nil {
		return nil, err
	}
	*sctx = next
	s.metrics.RecordTransition(ctx, string(eventType), string(next.Session.CurrentState))
	return sctx, nil
}

func (s *Service) issueToken(sctx *sessiondomain.Context, method string) (string, error) {
	if s.tokens == nil {
		return "", nil
	}
	token, _, err := s.tokens.Issue(sctx.Session.ID, sctx.Session.UserID, method)
	return token, err
}

// newCreationEvent builds the session_started audit record, the only event
// with no prior state.
func newCreationEvent(sessionID string, at time.Time) *auditdomain.AuthEvent {
	return &auditdomain.AuthEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		EventType: string(session.EventSessionStarted),
		StateTo:   sessiondomain.StateInitial,
		CreatedAt: at,
	}
}

func (s *Service) recordAttempt(ctx context.Context, sessionID string, attemptNumber int, verdict asl.VerifyResponse) error {
	raw, err := json.Marshal(verdict)
	if err != nil {
		return err
	}
	confidence := 0.0
	if verdict.IsAuthentic {
		confidence += 0.5
	}
	if verdict.FaceDetected {
		confidence += 0.5
	}
	return s.attempts.Create(ctx, &asldomain.VerificationAttempt{
		ID:               uuid.New().String(),
		SessionID:        sessionID,
		Success:          verdict.Accepted(),
		Confidence:       confidence,
		AttemptNumber:    attemptNumber,
		VerificationData: string(raw),
		CreatedAt:        s.nowF(),
	})
}
