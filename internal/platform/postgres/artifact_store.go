package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/platform/logger"
	"github.com/mindlog/session-worker/internal/store"
)

// ArtifactStore implements store.ArtifactStore using PostgreSQL.
type ArtifactStore struct {
	db  store.DBTX
	log *slog.Logger
}

// NewArtifactStore creates a PostgreSQL implementation of
// store.ArtifactStore.
func NewArtifactStore(db store.DBTX, log *slog.Logger) *ArtifactStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ArtifactStore{
		db:  db,
		log: log.With(slog.String("component", "artifact_store")),
	}
}

var _ store.ArtifactStore = (*ArtifactStore)(nil)

// GetFresh returns the cached artifact for the reference and kind if it
// exists and is not stale.
func (s *ArtifactStore) GetFresh(
	ctx context.Context,
	referenceID uuid.UUID,
	kind domain.ArtifactKind,
) (*domain.Artifact, error) {
	query := `
		SELECT id, reference_id, reference_type, kind, content, stale, generated_at
		FROM artifacts
		WHERE reference_id = $1 AND kind = $2 AND stale = false
	`

	var a domain.Artifact
	err := s.db.QueryRowContext(ctx, query, referenceID, kind).Scan(
		&a.ID,
		&a.ReferenceID,
		&a.ReferenceType,
		&a.Kind,
		&a.Content,
		&a.Stale,
		&a.GeneratedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %s/%s: %w", referenceID, kind, mapError(err))
	}
	return &a, nil
}

// Put upserts the artifact content for its reference and kind, clearing
// any stale mark.
func (s *ArtifactStore) Put(ctx context.Context, artifact *domain.Artifact) error {
	log := logger.FromContextOrDefault(ctx, s.log)

	if err := artifact.Validate(); err != nil {
		return err
	}
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	if artifact.GeneratedAt.IsZero() {
		artifact.GeneratedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO artifacts (id, reference_id, reference_type, kind, content, stale, generated_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
		ON CONFLICT (reference_id, kind) DO UPDATE
		SET content = EXCLUDED.content, stale = false, generated_at = EXCLUDED.generated_at
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		artifact.ID,
		artifact.ReferenceID,
		artifact.ReferenceType,
		artifact.Kind,
		artifact.Content,
		artifact.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store artifact %s/%s: %w",
			artifact.ReferenceID, artifact.Kind, mapError(err))
	}

	log.Debug("artifact stored",
		slog.String("reference_id", artifact.ReferenceID.String()),
		slog.String("kind", string(artifact.Kind)))
	return nil
}
