package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mindlog/session-worker/internal/config"
	"github.com/mindlog/session-worker/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// openaiProvider transcribes via the Whisper API through the official
// SDK. Whisper does not separate speakers, so all segments carry the
// same channel label and are left unclassified.
type openaiProvider struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

func newOpenAIProvider(cfg config.OpenAIConfig, log *slog.Logger) (*openaiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is not configured")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &openaiProvider{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
		log:    log.With(slog.String("component", "openai_provider")),
	}, nil
}

var _ Provider = (*openaiProvider)(nil)

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) Transcribe(
	ctx context.Context,
	audioPath string,
	_ Options,
) (*domain.Transcription, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJobFailed, err)
	}

	segments := make([]domain.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		content := s.Text
		if content == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			StartMs: int64(s.Start * 1000),
			EndMs:   int64(s.End * 1000),
			Speaker: "speaker_1",
			Content: content,
		})
	}

	p.log.Debug("whisper transcription complete",
		slog.Int("segments", len(segments)),
		slog.Int("text_len", len(resp.Text)))

	return &domain.Transcription{
		Text:       resp.Text,
		Model:      p.model,
		Timestamp:  time.Now().UTC(),
		Segments:   segments,
		Classified: false,
	}, nil
}
