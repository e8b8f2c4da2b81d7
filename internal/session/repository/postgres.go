package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"deafauth/backend/internal/session/domain"
)

// PostgresRepository persists auth sessions in the auth_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuthSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, current_state, started_at, completed_at, metadata,
		       ip_address, user_agent, platform
		FROM auth_sessions WHERE id = $1`, id)
	var (
		s         domain.AuthSession
		userID    sql.NullString
		completed sql.NullTime
		metadata  []byte
		state     string
	)
	err := row.Scan(&s.ID, &userID, &state, &s.StartedAt, &completed, &metadata,
		&s.Client.IPAddress, &s.Client.UserAgent, &s.Client.Platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.CurrentState = domain.AuthState(state)
	if userID.Valid {
		s.UserID = userID.String
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// Create persists a new session. The session must have ID set and be in its
// initial state.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.AuthSession) error {
	metadata, err := marshalMetadata(s.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, current_state, started_at, completed_at,
		                           metadata, ip_address, user_agent, platform)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, nullString(s.UserID), string(s.CurrentState), s.StartedAt,
		nullTime(s.CompletedAt), metadata,
		s.Client.IPAddress, s.Client.UserAgent, s.Client.Platform)
	return err
}

// UpdateState persists current_state and completed_at for the session.
func (r *PostgresRepository) UpdateState(ctx context.Context, s *domain.AuthSession) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions SET current_state = $2, completed_at = $3 WHERE id = $1`,
		s.ID, string(s.CurrentState), nullTime(s.CompletedAt))
	return err
}

// SetUser records the identified user on the session.
func (r *PostgresRepository) SetUser(ctx context.Context, sessionID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions SET user_id = $2 WHERE id = $1`,
		sessionID, nullString(userID))
	return err
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
