// Package classify rewrites a transcription's opaque speaker channel
// labels into semantic roles using the LLM collaborator. Classification
// is best-effort from the caller's perspective: a failure here leaves
// the original transcription intact.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/generation"
	"github.com/mindlog/session-worker/internal/platform/logger"
)

// ErrInvalidMapping is returned when the model's speaker mapping does
// not pass strict validation. The classifier rejects rather than
// guesses.
var ErrInvalidMapping = errors.New("invalid speaker mapping")

// roleAssignment is one entry of the model's response.
type roleAssignment struct {
	Role       string   `json:"role"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Classifier assigns semantic roles to speaker channels.
type Classifier struct {
	gen generation.Generator
	log *slog.Logger
}

// New creates a classifier backed by the given generator.
func New(gen generation.Generator, log *slog.Logger) *Classifier {
	if gen == nil {
		panic("generator cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		gen: gen,
		log: log.With(slog.String("component", "classifier")),
	}
}

// Classify returns a copy of the transcription with every segment's
// speaker rewritten to a semantic role and Classified set. It is a
// no-op when there are no segments or the transcription is already
// classified. The input is never mutated: on any error the caller can
// keep using it unchanged.
func (c *Classifier) Classify(ctx context.Context, t *domain.Transcription) (*domain.Transcription, error) {
	if t == nil || len(t.Segments) == 0 || t.Classified {
		return t, nil
	}

	log := logger.FromContextOrDefault(ctx, c.log)
	speakers := t.Speakers()

	response, err := c.gen.Generate(ctx, buildPrompt(t, speakers))
	if err != nil {
		return nil, fmt.Errorf("speaker classification call failed: %w", err)
	}

	mapping, err := parseMapping(response, speakers)
	if err != nil {
		return nil, err
	}

	out := *t
	out.Segments = make([]domain.Segment, len(t.Segments))
	for i, seg := range t.Segments {
		seg.Speaker = mapping[seg.Speaker]
		out.Segments[i] = seg
	}
	out.Classified = true

	log.Info("speakers classified",
		slog.Int("speakers", len(speakers)),
		slog.Int("segments", len(out.Segments)))
	return &out, nil
}

// buildPrompt renders the transcript as a flat timestamped text block
// and asks for a strict JSON role mapping.
func buildPrompt(t *domain.Transcription, speakers []string) string {
	var b strings.Builder

	b.WriteString("The following is a transcript of a therapy session with generic speaker labels.\n")
	b.WriteString("Assign each speaker exactly one role: therapist, client, or other.\n")
	b.WriteString("Respond with only a JSON object mapping every speaker label to ")
	b.WriteString(`{"role": "<role>", "confidence": <0..1>}`)
	b.WriteString(".\n\nSpeakers: ")
	b.WriteString(strings.Join(speakers, ", "))
	b.WriteString("\n\nTranscript:\n")

	for _, seg := range t.Segments {
		fmt.Fprintf(&b, "[%s] %s: %s\n", formatTimestamp(seg.StartMs), seg.Speaker, seg.Content)
	}
	return b.String()
}

// formatTimestamp renders milliseconds as mm:ss.
func formatTimestamp(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// parseMapping decodes and strictly validates the model's response:
// every observed speaker must be covered, every role must be in the
// allowed set, and confidence, when present, must be within [0,1].
func parseMapping(response string, speakers []string) (map[string]string, error) {
	cleaned := stripCodeFence(response)

	var parsed map[string]roleAssignment
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparsable response: %v", ErrInvalidMapping, err)
	}

	mapping := make(map[string]string, len(speakers))
	for speaker, assignment := range parsed {
		if !domain.ValidRole(assignment.Role) {
			return nil, fmt.Errorf("%w: role %q for %s is not allowed", ErrInvalidMapping, assignment.Role, speaker)
		}
		if assignment.Confidence != nil && (*assignment.Confidence < 0 || *assignment.Confidence > 1) {
			return nil, fmt.Errorf("%w: confidence %v for %s out of range", ErrInvalidMapping, *assignment.Confidence, speaker)
		}
		mapping[speaker] = assignment.Role
	}

	for _, speaker := range speakers {
		if _, ok := mapping[speaker]; !ok {
			return nil, fmt.Errorf("%w: speaker %s is not covered", ErrInvalidMapping, speaker)
		}
	}
	return mapping, nil
}

// stripCodeFence removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
