package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Worker     WorkerConfig     `mapstructure:"worker" validate:"required"`
	Queue      QueueConfig      `mapstructure:"queue" validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Transcribe TranscribeConfig `mapstructure:"transcribe" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts"`
}

// WorkerConfig contains process-level settings.
type WorkerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// QueueConfig contains all task-queue settings. The queue and its paired
// dead-letter queue are created on startup if they do not exist.
type QueueConfig struct {
	Name string `mapstructure:"name" validate:"required"`

	// WaitTimeSeconds is the long-poll wait per receive call.
	WaitTimeSeconds int32 `mapstructure:"wait_time_seconds" validate:"gte=1,lte=20"`

	// VisibilityTimeoutSeconds is how long a received message stays
	// hidden from other consumers before becoming redeliverable.
	VisibilityTimeoutSeconds int32 `mapstructure:"visibility_timeout_seconds" validate:"gte=30,lte=120"`

	// MaxMessages is the batch size per receive call.
	MaxMessages int32 `mapstructure:"max_messages" validate:"gte=1,lte=10"`

	// MaxReceiveCount is the redrive threshold after which a message is
	// moved to the dead-letter queue.
	MaxReceiveCount int `mapstructure:"max_receive_count" validate:"gte=1"`
}

// StorageConfig contains object-storage settings.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket" validate:"required"`
	Region string `mapstructure:"region" validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// TranscribeConfig selects and configures transcription providers.
type TranscribeConfig struct {
	// DefaultProvider is used when a recording does not name an engine.
	DefaultProvider string `mapstructure:"default_provider" validate:"required,oneof=openai yandex"`

	OpenAI OpenAIConfig `mapstructure:"openai"`
	Yandex YandexConfig `mapstructure:"yandex"`
}

// OpenAIConfig configures the Whisper SDK provider.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// YandexConfig configures the asynchronous long-audio provider. The
// timing knobs are tuning constants, not correctness-critical; defaults
// reflect the provider's observed realtime factor.
type YandexConfig struct {
	APIKey   string `mapstructure:"api_key"`
	FolderID string `mapstructure:"folder_id"`
	Model    string `mapstructure:"model"`

	// Endpoint is the base URL of the async recognition API.
	Endpoint string `mapstructure:"endpoint"`

	// RealtimeFactor (K) estimates processing time as audio duration
	// divided by K.
	RealtimeFactor int `mapstructure:"realtime_factor" validate:"gte=1"`

	// WindowMultiplier scales the estimated processing time into the
	// maximum total wait window.
	WindowMultiplier int `mapstructure:"window_multiplier" validate:"gte=1"`

	// Languages restricts recognition to these language codes.
	Languages []string `mapstructure:"languages"`
}

// LLMConfig contains all LLM integration related settings. The LLM is
// used for speaker role classification and artifact content generation.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
}

// ArtifactsConfig configures artifact generation.
type ArtifactsConfig struct {
	// PromptsDir holds one prompt template per artifact kind.
	PromptsDir string `mapstructure:"prompts_dir"`
}
