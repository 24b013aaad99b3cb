package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrNoChunks is returned when a recording has no chunks to assemble.
	ErrNoChunks = errors.New("recording has no chunks")

	// ErrEmptyTranscription is returned when a transcription carries no
	// usable text.
	ErrEmptyTranscription = errors.New("transcription is empty")
)
