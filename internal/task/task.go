// Package task parses queue messages, validates their correlation
// identifiers, and dispatches them to the operation-specific handlers.
package task

import "errors"

// Operations carried in the queue message's discriminant field.
const (
	OpTranscribe = "audio:transcribe"
	OpArtifacts  = "artifacts:generate"
)

// ErrMalformedMessage marks a message body that cannot be parsed at
// all. The consumer deletes such messages immediately: redelivery
// cannot make an unparsable body parsable.
var ErrMalformedMessage = errors.New("malformed task message")

// terminalError marks a task failure that redelivery cannot fix. The
// consumer leaves the message on the queue so the redrive policy walks
// it to the dead-letter queue after a few quick attempts.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return "terminal: " + e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err as a non-retryable task failure.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err is a non-retryable task failure.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}

// envelope is the wire shape of a queue message body. Operation
// discriminates the variant; the ID fields are required per operation.
type envelope struct {
	Operation      string `json:"operation"`
	AccountID      string `json:"accountId"`
	RecordingID    string `json:"recordingId,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
	Priority       string `json:"priority,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
