package repository

import (
	"context"

	"deafauth/backend/internal/audit/domain"
)

// Repository defines persistence for the append-only auth event log.
// There is deliberately no update or delete: events are immutable.
type Repository interface {
	Append(ctx context.Context, e *domain.AuthEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.AuthEvent, error)
}
