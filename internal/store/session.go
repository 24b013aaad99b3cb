package store

import (
	"context"

	"github.com/google/uuid"
)

// SessionStore resolves session ownership.
type SessionStore interface {
	// GetClientForSession returns the ID of the client who owns the
	// session. Returns ErrNotFound if the session does not exist or has
	// no client attached.
	GetClientForSession(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
}
