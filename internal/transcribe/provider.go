package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mindlog/session-worker/internal/config"
	"github.com/mindlog/session-worker/internal/domain"
)

// Options carries per-call transcription parameters.
type Options struct {
	// EstimatedDuration of the audio. Asynchronous providers use it to
	// pace their polling; zero means unknown.
	EstimatedDuration time.Duration
}

// Provider transcribes one audio file. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Transcribe converts the audio file into a transcription.
	Transcribe(ctx context.Context, audioPath string, opts Options) (*domain.Transcription, error)

	// Name returns the provider's registry name.
	Name() string
}

// ObjectStorage is the storage capability asynchronous providers need
// to stage audio for recognition.
type ObjectStorage interface {
	Upload(ctx context.Context, localPath, originalName string) (string, error)
	Delete(ctx context.Context, key string) error
	URI(key string) string
}

// Registry constructs providers lazily and caches them by name. The
// provider set is closed at compile time; adding a provider means adding
// a case here, callers are untouched.
type Registry struct {
	cfg     config.TranscribeConfig
	storage ObjectStorage
	log     *slog.Logger

	mu    sync.Mutex
	cache map[string]Provider
}

// NewRegistry creates a provider registry.
func NewRegistry(cfg config.TranscribeConfig, storage ObjectStorage, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		storage: storage,
		log:     log,
		cache:   make(map[string]Provider),
	}
}

// Get returns the provider registered under name, constructing it on
// first use. An empty name selects the configured default provider.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.cfg.DefaultProvider
	}
	name = strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[name]; ok {
		return p, nil
	}

	var (
		p   Provider
		err error
	)
	switch name {
	case "openai":
		p, err = newOpenAIProvider(r.cfg.OpenAI, r.log)
	case "yandex":
		p, err = newYandexProvider(r.cfg.Yandex, r.storage, r.log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to construct provider %q: %w", name, err)
	}

	r.cache[name] = p
	return p, nil
}
