package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/store"
)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	db  store.DBTX
	log *slog.Logger
}

// NewSessionStore creates a PostgreSQL implementation of
// store.SessionStore.
func NewSessionStore(db store.DBTX, log *slog.Logger) *SessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionStore{
		db:  db,
		log: log.With(slog.String("component", "session_store")),
	}
}

var _ store.SessionStore = (*SessionStore)(nil)

// GetClientForSession returns the ID of the client who owns the session.
func (s *SessionStore) GetClientForSession(
	ctx context.Context,
	sessionID uuid.UUID,
) (uuid.UUID, error) {
	query := `SELECT client_id FROM sessions WHERE id = $1`

	var clientID sql.Null[uuid.UUID]
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&clientID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve client for session %s: %w", sessionID, mapError(err))
	}
	if !clientID.Valid {
		return uuid.Nil, fmt.Errorf("%w: session %s has no client", store.ErrNotFound, sessionID)
	}
	return clientID.V, nil
}
