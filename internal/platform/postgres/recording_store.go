package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/platform/logger"
	"github.com/mindlog/session-worker/internal/store"
)

// RecordingStore implements store.RecordingStore using a PostgreSQL
// database as the storage backend.
type RecordingStore struct {
	db  store.DBTX
	log *slog.Logger
}

// NewRecordingStore creates a PostgreSQL implementation of
// store.RecordingStore. The database handle must be initialized and
// managed by the caller. If log is nil, the default logger is used.
func NewRecordingStore(db store.DBTX, log *slog.Logger) *RecordingStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RecordingStore{
		db:  db,
		log: log.With(slog.String("component", "recording_store")),
	}
}

// Ensure RecordingStore implements store.RecordingStore.
var _ store.RecordingStore = (*RecordingStore)(nil)

// GetRecording retrieves a recording scoped to the given account.
func (s *RecordingStore) GetRecording(
	ctx context.Context,
	accountID, recordingID uuid.UUID,
) (*domain.Recording, error) {
	query := `
		SELECT id, account_id, session_id, standalone_chunks, transcription_engine, created_at
		FROM recordings
		WHERE id = $1 AND account_id = $2
	`

	var rec domain.Recording
	err := s.db.QueryRowContext(ctx, query, recordingID, accountID).Scan(
		&rec.ID,
		&rec.AccountID,
		&rec.SessionID,
		&rec.StandaloneChunks,
		&rec.TranscriptionEngine,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recording %s: %w", recordingID, mapError(err))
	}
	return &rec, nil
}

// GetChunks returns the recording's chunks ordered by chunk number.
func (s *RecordingStore) GetChunks(
	ctx context.Context,
	recordingID uuid.UUID,
) ([]domain.RecordingChunk, error) {
	query := `
		SELECT storage_bucket, storage_path, chunk_number
		FROM recording_chunks
		WHERE recording_id = $1
		ORDER BY chunk_number ASC
	`

	rows, err := s.db.QueryContext(ctx, query, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for recording %s: %w", recordingID, mapError(err))
	}
	defer func() { _ = rows.Close() }()

	var chunks []domain.RecordingChunk
	for rows.Next() {
		var c domain.RecordingChunk
		if err := rows.Scan(&c.StorageBucket, &c.StoragePath, &c.ChunkNumber); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}
	return chunks, nil
}

// SaveTranscription persists the finished transcription onto the
// recording's session row.
func (s *RecordingStore) SaveTranscription(
	ctx context.Context,
	recordingID uuid.UUID,
	t *domain.Transcription,
) error {
	log := logger.FromContextOrDefault(ctx, s.log)

	if err := t.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transcription: %w", err)
	}

	query := `
		UPDATE sessions
		SET transcription = $2, transcribed_at = now()
		WHERE id = (SELECT session_id FROM recordings WHERE id = $1)
	`
	result, err := s.db.ExecContext(ctx, query, recordingID, payload)
	if err != nil {
		return fmt.Errorf("failed to save transcription for recording %s: %w", recordingID, mapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transcription update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: no session for recording %s", store.ErrNotFound, recordingID)
	}

	log.Debug("transcription saved",
		slog.String("recording_id", recordingID.String()),
		slog.Int("segments", len(t.Segments)))
	return nil
}

// DeleteRecording removes the recording row together with its chunk
// rows.
func (s *RecordingStore) DeleteRecording(ctx context.Context, recordingID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.log)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM recording_chunks WHERE recording_id = $1`, recordingID); err != nil {
		return fmt.Errorf("failed to delete chunks for recording %s: %w", recordingID, mapError(err))
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM recordings WHERE id = $1`, recordingID); err != nil {
		return fmt.Errorf("failed to delete recording %s: %w", recordingID, mapError(err))
	}

	log.Debug("recording deleted", slog.String("recording_id", recordingID.String()))
	return nil
}
