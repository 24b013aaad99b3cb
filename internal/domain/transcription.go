package domain

import (
	"fmt"
	"time"
)

// SpeakerRole is a semantic role assigned to a speaker channel after
// classification. The set is closed: classification output naming any
// other role is rejected rather than guessed at.
type SpeakerRole string

// Allowed speaker roles.
const (
	RoleTherapist SpeakerRole = "therapist"
	RoleClient    SpeakerRole = "client"
	RoleOther     SpeakerRole = "other"
)

// ValidRole reports whether s is one of the allowed speaker roles.
func ValidRole(s string) bool {
	switch SpeakerRole(s) {
	case RoleTherapist, RoleClient, RoleOther:
		return true
	}
	return false
}

// Segment is one contiguous utterance in a transcription, attributed to
// a single speaker. Before classification the Speaker field holds an
// opaque per-channel label such as "speaker_1"; after classification it
// holds one of the allowed roles.
type Segment struct {
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// Transcription is the result of transcribing a recording.
//
// Invariant: Segments are sorted ascending by StartMs and contain no
// empty text once a provider has reconciled its raw output.
type Transcription struct {
	// Text is the full transcript as a single string.
	Text string `json:"text"`

	// Model names the provider model that produced the transcript.
	Model string `json:"model"`

	// Timestamp is when the transcription completed.
	Timestamp time.Time `json:"timestamp"`

	// Segments holds the per-utterance breakdown. May be empty for
	// providers without segment support.
	Segments []Segment `json:"segments,omitempty"`

	// Classified reports whether Segment.Speaker values are semantic
	// roles rather than opaque channel labels.
	Classified bool `json:"classified"`
}

// Validate checks the transcription invariants that downstream
// consumers rely on.
func (t *Transcription) Validate() error {
	if t.Text == "" && len(t.Segments) == 0 {
		return ErrEmptyTranscription
	}
	var prev int64
	for i, seg := range t.Segments {
		if seg.StartMs < prev {
			return fmt.Errorf("%w: segment %d out of order", ErrValidation, i)
		}
		if seg.Content == "" {
			return fmt.Errorf("%w: segment %d has empty content", ErrValidation, i)
		}
		prev = seg.StartMs
	}
	return nil
}

// Speakers returns the distinct speaker labels present in the
// transcription, in first-seen order.
func (t *Transcription) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, seg := range t.Segments {
		if !seen[seg.Speaker] {
			seen[seg.Speaker] = true
			out = append(out, seg.Speaker)
		}
	}
	return out
}
