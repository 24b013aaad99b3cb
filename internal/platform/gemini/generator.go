// Package gemini implements generation.Generator using Google's Gemini
// API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mindlog/session-worker/internal/config"
	"github.com/mindlog/session-worker/internal/generation"
	"google.golang.org/genai"
)

// maxAttempts bounds retries against transient provider failures.
const maxAttempts = 3

// Generator implements the generation.Generator interface using
// Google's Gemini API.
type Generator struct {
	log    *slog.Logger
	client *genai.Client
	model  string
}

// NewGenerator creates a Gemini-backed generator from LLM configuration.
func NewGenerator(ctx context.Context, log *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Generator{
		log:    log.With(slog.String("component", "gemini")),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

var _ generation.Generator = (*Generator)(nil)

// Generate returns the model's text response for the prompt, retrying
// transient failures with jittered backoff.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrGenerationFailed)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1)*500*time.Millisecond +
				time.Duration(rand.Intn(250))*time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err != nil {
			lastErr = err
			g.log.Warn("generation attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}

		text := resp.Text()
		if text == "" {
			return "", generation.ErrEmptyResponse
		}
		return text, nil
	}

	return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, lastErr)
}
