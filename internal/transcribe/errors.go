package transcribe

import "errors"

// Errors returned by providers and the registry.
var (
	// ErrUnknownProvider is returned when no provider is registered
	// under the requested name.
	ErrUnknownProvider = errors.New("unknown transcription provider")

	// ErrSubmitFailed indicates the recognition job could not be
	// submitted. Submission failures are contract or configuration
	// errors and are never retried.
	ErrSubmitFailed = errors.New("recognition job submission failed")

	// ErrJobFailed indicates the provider reported an explicit error for
	// the job. Redelivery would repeat the same failure.
	ErrJobFailed = errors.New("recognition job failed")

	// ErrPollTimeout indicates the job did not complete within the
	// maximum wait window.
	ErrPollTimeout = errors.New("recognition job timed out")
)
