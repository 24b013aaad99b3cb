package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
	"github.com/mindlog/session-worker/internal/domain"
	"github.com/mindlog/session-worker/internal/generation"
)

// defaultPrompts are used when no template file exists for a kind. A
// prompts directory overrides these per kind with a <kind>.tmpl file.
var defaultPrompts = map[domain.ArtifactKind]string{
	domain.KindSessionSummary:          "Write a concise clinical summary of therapy session {{.ReferenceID}}.",
	domain.KindSessionSOAPNote:         "Write a SOAP note for therapy session {{.ReferenceID}}.",
	domain.KindClientBio:               "Write a biographical overview for client {{.ReferenceID}} based on their session history.",
	domain.KindClientConceptualization: "Write a case conceptualization for client {{.ReferenceID}} based on their session history.",
	domain.KindClientPrepNote:          "Write a preparation note for the next session with client {{.ReferenceID}}.",
}

// promptData is the template input for artifact prompts.
type promptData struct {
	Kind        domain.ArtifactKind
	ReferenceID uuid.UUID
}

// PromptGenerator renders a per-kind prompt template and asks the LLM
// for the artifact content.
type PromptGenerator struct {
	gen        generation.Generator
	promptsDir string

	mu        sync.Mutex
	templates map[domain.ArtifactKind]*template.Template
}

// NewPromptGenerator creates a generator that loads prompt templates
// from promptsDir. An empty promptsDir means built-in prompts only.
func NewPromptGenerator(gen generation.Generator, promptsDir string) *PromptGenerator {
	if gen == nil {
		panic("generator cannot be nil")
	}
	return &PromptGenerator{
		gen:        gen,
		promptsDir: promptsDir,
		templates:  make(map[domain.ArtifactKind]*template.Template),
	}
}

// GenerateArtifact renders the prompt for the kind and returns the
// model's content. Empty model output is an error: an artifact is never
// stored without content.
func (g *PromptGenerator) GenerateArtifact(ctx context.Context, kind domain.ArtifactKind, referenceID uuid.UUID) (string, error) {
	tmpl, err := g.template(kind)
	if err != nil {
		return "", err
	}

	var prompt strings.Builder
	if err := tmpl.Execute(&prompt, promptData{Kind: kind, ReferenceID: referenceID}); err != nil {
		return "", fmt.Errorf("failed to render prompt for %s: %w", kind, err)
	}

	content, err := g.gen.Generate(ctx, prompt.String())
	if err != nil {
		return "", fmt.Errorf("failed to generate %s content: %w", kind, err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content for %s", generation.ErrEmptyResponse, kind)
	}
	return content, nil
}

// template returns the parsed template for a kind, preferring a
// <kind>.tmpl file in the prompts directory over the built-in prompt.
// Parsed templates are cached.
func (g *PromptGenerator) template(kind domain.ArtifactKind) (*template.Template, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if tmpl, ok := g.templates[kind]; ok {
		return tmpl, nil
	}

	text, ok := defaultPrompts[kind]
	if !ok {
		return nil, fmt.Errorf("no prompt defined for artifact kind %q", kind)
	}
	if g.promptsDir != "" {
		path := filepath.Join(g.promptsDir, string(kind)+".tmpl")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			text = string(data)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read prompt template %s: %w", path, err)
		}
	}

	tmpl, err := template.New(string(kind)).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for %s: %w", kind, err)
	}
	g.templates[kind] = tmpl
	return tmpl, nil
}
