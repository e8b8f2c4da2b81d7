// Package audit persists the append-only auth event log and streams events to
// optional emitters. Recording is split: the durable append must succeed for a
// transition to commit, the stream fan-out is best-effort.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deafauth/backend/internal/audit/domain"
	auditrepo "deafauth/backend/internal/audit/repository"
	"deafauth/backend/internal/telemetry"
)

const emitTimeout = 5 * time.Second

// Recorder appends auth events and fans them out to emitters.
type Recorder struct {
	repo     auditrepo.Repository
	emitters []telemetry.EventEmitter
	log      *zap.Logger
}

// NewRecorder returns a Recorder writing to repo. emitters may be empty; a nil
// logger falls back to zap.NewNop.
func NewRecorder(repo auditrepo.Repository, log *zap.Logger, emitters ...telemetry.EventEmitter) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, emitters: emitters, log: log}
}

// Record appends e to the durable log and, on success, streams it to every
// emitter in the background. The durable append error is returned to the
// caller; emitter failures are logged and dropped.
func (r *Recorder) Record(ctx context.Context, e *domain.AuthEvent, userID string) error {
	if err := r.repo.Append(ctx, e); err != nil {
		return err
	}
	if len(r.emitters) == 0 {
		return nil
	}
	ev := &telemetry.Event{
		SessionID: e.SessionID,
		UserID:    userID,
		EventType: e.EventType,
		StateTo:   string(e.StateTo),
		Data:      e.Data,
		Source:    "authflow",
		CreatedAt: e.CreatedAt,
	}
	if e.StateFrom != nil {
		ev.StateFrom = string(*e.StateFrom)
	}
	for _, em := range r.emitters {
		go func(em telemetry.EventEmitter) {
			emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
			defer cancel()
			if err := em.Emit(emitCtx, ev); err != nil {
				r.log.Warn("audit: event emit failed",
					zap.String("session_id", ev.SessionID),
					zap.String("event_type", ev.EventType),
					zap.Error(err))
			}
		}(em)
	}
	return nil
}
