package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Recording represents an uploaded session recording awaiting
// transcription. Recordings are created by the upload subsystem and are
// read-only to the worker; the worker deletes them (together with their
// chunks) once a transcription has been persisted.
type Recording struct {
	// ID uniquely identifies the recording.
	ID uuid.UUID

	// AccountID identifies the owning tenant account.
	AccountID uuid.UUID

	// SessionID links the recording to the therapy session it captured.
	SessionID uuid.UUID

	// StandaloneChunks indicates whether each uploaded chunk is an
	// independently decodable container. When false, chunks are raw
	// container fragments that must be byte-concatenated before they
	// form a valid file.
	StandaloneChunks bool

	// TranscriptionEngine names the provider to transcribe with. Empty
	// means the configured default.
	TranscriptionEngine string

	// CreatedAt is when the recording row was created.
	CreatedAt time.Time
}

// Validate checks that the recording has the identifiers the worker
// needs to process it.
func (r *Recording) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: recording ID is required", ErrValidation)
	}
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account ID is required", ErrValidation)
	}
	return nil
}

// RecordingChunk is one uploaded fragment of a recording's audio,
// addressed by its object-storage location. Chunks are immutable once
// written and ordered by ChunkNumber.
type RecordingChunk struct {
	// StorageBucket is the object-storage bucket holding the chunk.
	StorageBucket string

	// StoragePath is the object key within the bucket.
	StoragePath string

	// ChunkNumber is the zero-based position of the chunk in the
	// recording. Chunks may be downloaded out of order but are always
	// assembled in ChunkNumber order.
	ChunkNumber int
}

// SortChunks orders chunks ascending by chunk number in place.
func SortChunks(chunks []RecordingChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkNumber < chunks[j].ChunkNumber
	})
}
