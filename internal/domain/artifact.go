package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReferenceType identifies what kind of entity an artifact is derived
// from.
type ReferenceType string

// Artifact reference types.
const (
	ReferenceSession ReferenceType = "session"
	ReferenceClient  ReferenceType = "client"
)

// ArtifactKind names one of the derived content artifacts the pipeline
// regenerates for a session and its owning client.
type ArtifactKind string

// Artifact kinds, listed in their fixed generation order: session-level
// artifacts are generated before client-level ones because the client
// artifacts summarize across sessions.
const (
	KindSessionSummary          ArtifactKind = "session_summary"
	KindSessionSOAPNote         ArtifactKind = "session_soap_note"
	KindClientBio               ArtifactKind = "client_bio"
	KindClientConceptualization ArtifactKind = "client_conceptualization"
	KindClientPrepNote          ArtifactKind = "client_prep_note"
)

// Reference returns the reference type a kind attaches to.
func (k ArtifactKind) Reference() ReferenceType {
	switch k {
	case KindSessionSummary, KindSessionSOAPNote:
		return ReferenceSession
	default:
		return ReferenceClient
	}
}

// Artifact is a cached piece of derived content for a session or
// client. Artifacts are individually idempotent: a fresh artifact is
// returned from cache instead of being regenerated.
type Artifact struct {
	ID            uuid.UUID
	ReferenceID   uuid.UUID
	ReferenceType ReferenceType
	Kind          ArtifactKind
	Content       string

	// Stale marks the cached content as outdated relative to its source
	// data. Stale artifacts are regenerated on the next pipeline run.
	Stale bool

	GeneratedAt time.Time
}

// Validate checks the artifact's required fields.
func (a *Artifact) Validate() error {
	if a.ReferenceID == uuid.Nil {
		return fmt.Errorf("%w: artifact reference ID is required", ErrValidation)
	}
	if a.ReferenceType != ReferenceSession && a.ReferenceType != ReferenceClient {
		return fmt.Errorf("%w: unknown reference type %q", ErrValidation, a.ReferenceType)
	}
	if a.Kind == "" {
		return fmt.Errorf("%w: artifact kind is required", ErrValidation)
	}
	if a.Content == "" {
		return fmt.Errorf("%w: artifact content is empty", ErrValidation)
	}
	return nil
}
