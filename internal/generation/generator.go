package generation

import "context"

// Generator produces content from a prompt. Implementations must be
// safe for concurrent use.
type Generator interface {
	// Generate returns the model's text response for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}
