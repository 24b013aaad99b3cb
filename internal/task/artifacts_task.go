package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/platform/logger"
)

// regenerator runs the artifact pipeline for one session.
type regenerator interface {
	Regenerate(ctx context.Context, sessionID uuid.UUID) error
}

// ArtifactsTask regenerates the derived artifacts for a session.
type ArtifactsTask struct {
	pipeline regenerator
	log      *slog.Logger
}

// NewArtifactsTask creates the artifact task handler.
func NewArtifactsTask(pipeline regenerator, log *slog.Logger) *ArtifactsTask {
	if pipeline == nil {
		panic("pipeline cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ArtifactsTask{
		pipeline: pipeline,
		log:      log.With(slog.String("component", "artifacts_task")),
	}
}

// Execute delegates to the pipeline. A partial failure surfaces as the
// pipeline's aggregate error, leaving the message for redelivery so the
// failed kinds get another attempt against the artifact cache.
func (t *ArtifactsTask) Execute(ctx context.Context, sessionID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, t.log)

	if err := t.pipeline.Regenerate(ctx, sessionID); err != nil {
		return fmt.Errorf("artifact regeneration failed: %w", err)
	}

	log.Info("artifacts regenerated for session")
	return nil
}
