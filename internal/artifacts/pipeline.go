// Package artifacts regenerates the derived content artifacts for a
// session and its owning client in a fixed order, tolerating and
// aggregating per-artifact failures.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/platform/logger"
	"github.com/mindlog/session-worker/internal/store"
)

// Order is the fixed generation order: session-level artifacts first,
// then client-level ones. This is a hard-coded sequence, not a
// scheduler.
var Order = []domain.ArtifactKind{
	domain.KindSessionSummary,
	domain.KindSessionSOAPNote,
	domain.KindClientBio,
	domain.KindClientConceptualization,
	domain.KindClientPrepNote,
}

// ContentGenerator produces the content for one artifact. It is an
// external collaborator; its internals are opaque to the pipeline.
type ContentGenerator interface {
	GenerateArtifact(ctx context.Context, kind domain.ArtifactKind, referenceID uuid.UUID) (string, error)
}

// RegenerationError aggregates per-artifact failures from one pipeline
// run. Successful artifacts remain generated; only the listed kinds
// failed.
type RegenerationError struct {
	SessionID uuid.UUID
	ClientID  uuid.UUID
	Failed    []domain.ArtifactKind
	Total     int
}

func (e *RegenerationError) Error() string {
	return fmt.Sprintf("artifact regeneration for session %s (client %s): %d of %d artifacts failed: %v",
		e.SessionID, e.ClientID, len(e.Failed), e.Total, e.Failed)
}

// Pipeline regenerates artifacts for a session and its owning client.
type Pipeline struct {
	sessions  store.SessionStore
	artifacts store.ArtifactStore
	gen       ContentGenerator
	log       *slog.Logger
}

// NewPipeline creates an artifact pipeline.
func NewPipeline(
	sessions store.SessionStore,
	artifactStore store.ArtifactStore,
	gen ContentGenerator,
	log *slog.Logger,
) *Pipeline {
	if sessions == nil || artifactStore == nil || gen == nil {
		panic("pipeline dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		sessions:  sessions,
		artifacts: artifactStore,
		gen:       gen,
		log:       log.With(slog.String("component", "artifact_pipeline")),
	}
}

// Regenerate attempts every artifact kind in Order. A missing owning
// client is fatal; individual artifact failures are isolated, collected,
// and reported once as a RegenerationError after all kinds have been
// attempted.
func (p *Pipeline) Regenerate(ctx context.Context, sessionID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, p.log).With(
		slog.String("session_id", sessionID.String()))

	clientID, err := p.sessions.GetClientForSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to resolve owning client for session %s: %w", sessionID, err)
	}

	var failed []domain.ArtifactKind
	for _, kind := range Order {
		referenceID := sessionID
		if kind.Reference() == domain.ReferenceClient {
			referenceID = clientID
		}

		if err := p.regenerateOne(ctx, referenceID, kind); err != nil {
			log.Error("artifact generation failed",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()))
			failed = append(failed, kind)
		}
	}

	if len(failed) > 0 {
		return &RegenerationError{
			SessionID: sessionID,
			ClientID:  clientID,
			Failed:    failed,
			Total:     len(Order),
		}
	}

	log.Info("artifacts regenerated", slog.Int("count", len(Order)))
	return nil
}

// regenerateOne is idempotent: a fresh cached artifact short-circuits
// generation.
func (p *Pipeline) regenerateOne(ctx context.Context, referenceID uuid.UUID, kind domain.ArtifactKind) error {
	_, err := p.artifacts.GetFresh(ctx, referenceID, kind)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	content, err := p.gen.GenerateArtifact(ctx, kind, referenceID)
	if err != nil {
		return err
	}

	return p.artifacts.Put(ctx, &domain.Artifact{
		ReferenceID:   referenceID,
		ReferenceType: kind.Reference(),
		Kind:          kind,
		Content:       content,
	})
}
