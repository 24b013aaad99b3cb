package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
)

// ArtifactStore provides cache-backed access to derived content
// artifacts.
type ArtifactStore interface {
	// GetFresh returns the cached artifact for the reference and kind if
	// it exists and is not stale. Returns ErrNotFound for missing or
	// stale artifacts.
	GetFresh(ctx context.Context, referenceID uuid.UUID, kind domain.ArtifactKind) (*domain.Artifact, error)

	// Put upserts the artifact content for its reference and kind,
	// clearing any stale mark.
	Put(ctx context.Context, artifact *domain.Artifact) error
}
