package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"deafauth/backend/internal/audit/domain"
	sessiondomain "deafauth/backend/internal/session/domain"
)

// PostgresRepository persists auth events in the auth_events table. The table
// is append-only; no update or delete statements exist here.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an auth event repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one auth event.
func (r *PostgresRepository) Append(ctx context.Context, e *domain.AuthEvent) error {
	var stateFrom sql.NullString
	if e.StateFrom != nil {
		stateFrom = sql.NullString{String: string(*e.StateFrom), Valid: true}
	}
	data := []byte("{}")
	if len(e.Data) > 0 {
		var err error
		data, err = json.Marshal(e.Data)
		if err != nil {
			return err
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_events (id, session_id, event_type, state_from, state_to, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.SessionID, e.EventType, stateFrom, string(e.StateTo), data, e.CreatedAt)
	return err
}

// ListBySession returns the session's events ordered by creation time, the
// order required for replay.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.AuthEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, event_type, state_from, state_to, data, created_at
		FROM auth_events WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuthEvent
	for rows.Next() {
		var (
			e         domain.AuthEvent
			stateFrom sql.NullString
			stateTo   string
			data      []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &stateFrom, &stateTo, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		if stateFrom.Valid {
			s := sessiondomain.AuthState(stateFrom.String)
			e.StateFrom = &s
		}
		e.StateTo = sessiondomain.AuthState(stateTo)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
