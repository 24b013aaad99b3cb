package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/platform/logger"
	"github.com/mindlog/session-worker/internal/store"
	"github.com/mindlog/session-worker/internal/transcribe"
)

// assembler joins a recording's chunks into one playable file.
type assembler interface {
	Assemble(ctx context.Context, chunks []domain.RecordingChunk, standalone bool) (string, error)
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// providerResolver selects a transcription provider by name.
type providerResolver interface {
	Get(name string) (transcribe.Provider, error)
}

// roleClassifier rewrites generic speaker labels into semantic roles.
type roleClassifier interface {
	Classify(ctx context.Context, t *domain.Transcription) (*domain.Transcription, error)
}

// chunkDeleter removes one stored chunk object.
type chunkDeleter interface {
	DeleteObject(ctx context.Context, bucket, key string) error
}

// TranscribeTask runs the audio transcription flow for one recording:
// assemble chunks, transcribe, classify speakers, persist, clean up.
type TranscribeTask struct {
	recordings store.RecordingStore
	assembler  assembler
	providers  providerResolver
	classifier roleClassifier
	objects    chunkDeleter
	log        *slog.Logger
}

// NewTranscribeTask creates the transcription task handler. The
// classifier is optional; without one, transcriptions are saved with
// their generic speaker labels.
func NewTranscribeTask(
	recordings store.RecordingStore,
	asm assembler,
	providers providerResolver,
	classifier roleClassifier,
	objects chunkDeleter,
	log *slog.Logger,
) *TranscribeTask {
	if recordings == nil || asm == nil || providers == nil || objects == nil {
		panic("transcribe task dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &TranscribeTask{
		recordings: recordings,
		assembler:  asm,
		providers:  providers,
		classifier: classifier,
		objects:    objects,
		log:        log.With(slog.String("component", "transcribe_task")),
	}
}

// Execute transcribes the recording and deletes it on success. A
// recording that no longer exists is treated as already processed:
// redeliveries of a completed task succeed as no-ops.
func (t *TranscribeTask) Execute(ctx context.Context, recordingID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, t.log)

	accountID, ok := AccountFrom(ctx)
	if !ok {
		return Terminal(errors.New("no account in context"))
	}

	rec, err := t.recordings.GetRecording(ctx, accountID, recordingID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("recording not found, treating as already processed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load recording %s: %w", recordingID, err)
	}

	chunks, err := t.recordings.GetChunks(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("failed to load chunks for recording %s: %w", recordingID, err)
	}
	if len(chunks) == 0 {
		return Terminal(fmt.Errorf("recording %s has no chunks: %w", recordingID, domain.ErrNoChunks))
	}

	audioPath, err := t.assembler.Assemble(ctx, chunks, rec.StandaloneChunks)
	if err != nil {
		return fmt.Errorf("failed to assemble recording %s: %w", recordingID, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(filepath.Dir(audioPath)); rmErr != nil {
			log.Warn("failed to remove assembled audio", slog.String("error", rmErr.Error()))
		}
	}()

	// An unknown duration only degrades polling pace, never the task.
	duration, err := t.assembler.ProbeDuration(ctx, audioPath)
	if err != nil {
		log.Warn("failed to probe audio duration", slog.String("error", err.Error()))
		duration = 0
	}

	provider, err := t.providers.Get(rec.TranscriptionEngine)
	if err != nil {
		return Terminal(fmt.Errorf("failed to select transcription provider: %w", err))
	}

	log.Info("transcribing recording",
		slog.String("provider", provider.Name()),
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", duration))

	transcription, err := provider.Transcribe(ctx, audioPath, transcribe.Options{
		EstimatedDuration: duration,
	})
	if err != nil {
		return fmt.Errorf("transcription failed for recording %s: %w", recordingID, err)
	}

	// Classification is best-effort: an unclassified transcript beats a
	// lost one.
	if t.classifier != nil {
		classified, err := t.classifier.Classify(ctx, transcription)
		if err != nil {
			log.Warn("speaker classification failed, keeping generic labels",
				slog.String("error", err.Error()))
		} else {
			transcription = classified
		}
	}

	if err := t.recordings.SaveTranscription(ctx, recordingID, transcription); err != nil {
		return fmt.Errorf("failed to save transcription for recording %s: %w", recordingID, err)
	}

	t.cleanup(ctx, log, recordingID, chunks)

	log.Info("recording transcribed",
		slog.Int("segments", len(transcription.Segments)),
		slog.Bool("classified", transcription.Classified))
	return nil
}

// cleanup removes the stored chunk objects and the recording rows. The
// transcription is already saved at this point; cleanup failures are
// logged and never fail the task.
func (t *TranscribeTask) cleanup(ctx context.Context, log *slog.Logger, recordingID uuid.UUID, chunks []domain.RecordingChunk) {
	for _, chunk := range chunks {
		if err := t.objects.DeleteObject(ctx, chunk.StorageBucket, chunk.StoragePath); err != nil {
			log.Warn("failed to delete chunk object",
				slog.String("key", chunk.StoragePath),
				slog.String("error", err.Error()))
		}
	}
	if err := t.recordings.DeleteRecording(ctx, recordingID); err != nil {
		log.Warn("failed to delete recording rows", slog.String("error", err.Error()))
	}
}
