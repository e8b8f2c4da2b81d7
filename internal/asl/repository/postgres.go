package repository

import (
	"context"
	"database/sql"

	"deafauth/backend/internal/asl/domain"
)

// PostgresRepository persists ASL verification attempts in the
// asl_verification_attempts table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an attempt repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one verification attempt.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.VerificationAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO asl_verification_attempts
			(id, session_id, success, confidence, attempt_number, verification_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.SessionID, a.Success, a.Confidence, a.AttemptNumber, a.VerificationData, a.CreatedAt)
	return err
}

// ListBySession returns the session's attempts ordered by attempt number.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.VerificationAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, success, confidence, attempt_number, verification_data, created_at
		FROM asl_verification_attempts WHERE session_id = $1 ORDER BY attempt_number`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.VerificationAttempt
	for rows.Next() {
		var a domain.VerificationAttempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Success, &a.Confidence,
			&a.AttemptNumber, &a.VerificationData, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
