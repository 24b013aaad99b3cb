package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
)

// RecordingStore provides access to recordings and their uploaded
// chunks.
type RecordingStore interface {
	// GetRecording retrieves a recording scoped to the given account.
	// Returns ErrNotFound if it does not exist or belongs to another
	// account.
	GetRecording(ctx context.Context, accountID, recordingID uuid.UUID) (*domain.Recording, error)

	// GetChunks returns the recording's chunks ordered by chunk number.
	GetChunks(ctx context.Context, recordingID uuid.UUID) ([]domain.RecordingChunk, error)

	// SaveTranscription persists the finished transcription for the
	// recording's session.
	SaveTranscription(ctx context.Context, recordingID uuid.UUID, t *domain.Transcription) error

	// DeleteRecording removes the recording row together with its chunk
	// rows. Object-storage cleanup is the caller's responsibility.
	DeleteRecording(ctx context.Context, recordingID uuid.UUID) error
}
