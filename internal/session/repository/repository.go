package repository

import (
	"context"

	"deafauth/backend/internal/session/domain"
)

// Repository defines persistence for auth sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuthSession, error)
	Create(ctx context.Context, s *domain.AuthSession) error
	// UpdateState persists the session's current state and, for terminal
	// states, its completion time. Callers must hold the session's write
	// ownership; the audit log append and this update belong to the same
	// logical transition.
	UpdateState(ctx context.Context, s *domain.AuthSession) error
	// SetUser records the identified user on the session.
	SetUser(ctx context.Context, sessionID, userID string) error
}
