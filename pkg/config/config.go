package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the single configuration object for the whole process. It is
// built once at startup and handed to every component that needs it.
type Config struct {
	OllamaHost     string   `yaml:"ollamaHost"`
	ChatModel      string   `yaml:"chatModel"`
	VisionModel    string   `yaml:"visionModel"`
	EmbeddingModel string   `yaml:"embeddingModel"`
	DataDir        string   `yaml:"dataDir"`
	CaptureEvery   Duration `yaml:"captureEvery"`
	LogLevel       string   `yaml:"logLevel"`
}

// Default returns a configuration that runs against a stock local Ollama
// install with no config file at all.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		OllamaHost:     "http://localhost:11434",
		ChatModel:      "llama3.2",
		VisionModel:    "llama3.2-vision",
		EmbeddingModel: "nomic-embed-text",
		DataDir:        filepath.Join(home, ".glimpse", "records"),
		CaptureEvery:   Duration(2 * time.Minute),
		LogLevel:       "info",
	}
}

// Load builds the effective configuration: defaults, overridden by the YAML
// file at path (if it exists), overridden by environment variables. A .env
// file in the working directory is loaded first so it can feed the env
// overrides.
func Load(path string) (Config, error) {
	// Missing .env is fine; it is a convenience, not a requirement.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No config file, defaults + env carry the day.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.CaptureEvery <= 0 {
		return Config{}, fmt.Errorf("captureEvery must be positive, got %v", cfg.CaptureEvery.Std())
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setIfPresent("OLLAMA_HOST", &cfg.OllamaHost)
	setIfPresent("GLIMPSE_CHAT_MODEL", &cfg.ChatModel)
	setIfPresent("GLIMPSE_VISION_MODEL", &cfg.VisionModel)
	setIfPresent("GLIMPSE_EMBED_MODEL", &cfg.EmbeddingModel)
	setIfPresent("GLIMPSE_DATA_DIR", &cfg.DataDir)
	setIfPresent("GLIMPSE_LOG_LEVEL", &cfg.LogLevel)

	if v := os.Getenv("GLIMPSE_CAPTURE_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CaptureEvery = Duration(d)
		}
	}
}

func setIfPresent(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
