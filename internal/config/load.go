package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional worker.yaml file and from
// environment variables with the WORKER_ prefix. Environment variables
// take precedence over file values. Returns a populated Config or an
// error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("worker")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/session-worker")

	v.SetEnvPrefix("WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: everything can come from the
		// environment. Any other read error is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for all optional settings, and
// empty defaults for required ones so viper's AutomaticEnv can bind them
// during Unmarshal (viper only considers keys it already knows about).
func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.log_level", "info")

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("database.url", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("transcribe.openai.api_key", "")
	v.SetDefault("transcribe.yandex.api_key", "")
	v.SetDefault("transcribe.yandex.folder_id", "")

	v.SetDefault("queue.name", "session-worker-tasks")
	v.SetDefault("queue.wait_time_seconds", 20)
	v.SetDefault("queue.visibility_timeout_seconds", 60)
	v.SetDefault("queue.max_messages", 10)
	v.SetDefault("queue.max_receive_count", 5)

	v.SetDefault("transcribe.default_provider", "yandex")
	v.SetDefault("transcribe.openai.model", "whisper-1")
	v.SetDefault("transcribe.yandex.model", "general")
	v.SetDefault("transcribe.yandex.endpoint", "https://stt.api.cloud.yandex.net/stt/v3")
	v.SetDefault("transcribe.yandex.realtime_factor", 15)
	v.SetDefault("transcribe.yandex.window_multiplier", 2)
	v.SetDefault("transcribe.yandex.languages", []string{"ru-RU"})

	v.SetDefault("llm.model_name", "gemini-2.0-flash")

	v.SetDefault("artifacts.prompts_dir", "prompts")
}
