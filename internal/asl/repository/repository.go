package repository

import (
	"context"

	"deafauth/backend/internal/asl/domain"
)

// Repository defines persistence for ASL verification attempts.
type Repository interface {
	Create(ctx context.Context, a *domain.VerificationAttempt) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.VerificationAttempt, error)
}
