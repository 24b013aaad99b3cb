package generation

import "errors"

// Errors returned by Generator implementations.
var (
	// ErrInvalidConfig indicates the generator was constructed with
	// invalid or missing configuration.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrGenerationFailed indicates the provider call failed after any
	// internal retries.
	ErrGenerationFailed = errors.New("content generation failed")

	// ErrEmptyResponse indicates the provider returned no usable text.
	ErrEmptyResponse = errors.New("empty generation response")
)
