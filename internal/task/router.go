package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/platform/logger"
)

// TranscribeHandler executes the audio transcription task for one
// recording.
type TranscribeHandler interface {
	Execute(ctx context.Context, recordingID uuid.UUID) error
}

// ArtifactsHandler executes the artifact regeneration task for one
// session.
type ArtifactsHandler interface {
	Execute(ctx context.Context, sessionID uuid.UUID) error
}

// Router parses message bodies and dispatches them by operation.
type Router struct {
	transcribe TranscribeHandler
	artifacts  ArtifactsHandler
	log        *slog.Logger
}

// NewRouter creates a router over the two task handlers.
func NewRouter(transcribe TranscribeHandler, artifacts ArtifactsHandler, log *slog.Logger) *Router {
	if transcribe == nil || artifacts == nil {
		panic("task handlers cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		transcribe: transcribe,
		artifacts:  artifacts,
		log:        log.With(slog.String("component", "task_router")),
	}
}

// Route parses the message body and runs the matching handler under an
// account-scoped context. An unparsable body returns
// ErrMalformedMessage; a parsable body with a missing or invalid
// required field, or an unknown operation, returns a Terminal error.
func (r *Router) Route(ctx context.Context, body []byte) error {
	var env envelope
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	accountID, err := requiredID("accountId", env.AccountID)
	if err != nil {
		return err
	}

	log := r.log.With(
		slog.String("operation", env.Operation),
		slog.String("account_id", accountID.String()))
	ctx = WithAccount(ctx, accountID)

	switch env.Operation {
	case OpTranscribe:
		recordingID, err := requiredID("recordingId", env.RecordingID)
		if err != nil {
			return err
		}
		log = log.With(slog.String("recording_id", recordingID.String()))
		log.Info("task received")
		return r.transcribe.Execute(logger.WithLogger(ctx, log), recordingID)

	case OpArtifacts:
		sessionID, err := requiredID("sessionId", env.SessionID)
		if err != nil {
			return err
		}
		log = log.With(slog.String("session_id", sessionID.String()))
		log.Info("task received")
		return r.artifacts.Execute(logger.WithLogger(ctx, log), sessionID)

	default:
		return Terminal(fmt.Errorf("unknown operation %q", env.Operation))
	}
}

// requiredID parses a required correlation identifier. Absence or an
// invalid UUID is terminal: the message will carry the same bad field on
// every redelivery.
func requiredID(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, Terminal(fmt.Errorf("missing required field %q", field))
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, Terminal(fmt.Errorf("invalid %s %q: %w", field, value, err))
	}
	return id, nil
}
