package llm

import (
	"context"
	"os"
)

// Client is the interface for every outbound model call the system makes:
// plain generation (summarization, time parsing), vision-assisted
// generation (screenshot analysis), and text embedding.
type Client interface {
	// Generate processes a single prompt and returns a completion.
	Generate(ctx context.Context, prompt string, config ModelConfig) (string, error)

	// GenerateWithImages runs a multimodal prompt over the given images.
	GenerateWithImages(ctx context.Context, prompt string, images [][]byte, config ModelConfig) (string, error)

	// Embed returns one fixed-length vector per input text, order-preserving.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	Close() error
}

// Embedder is the subset of Client the vector store needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelConfig holds configuration parameters for model generation
type ModelConfig struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
	JSONOutput  bool
}

// DefaultModelConfig returns a default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   2048,
	}
}

// StructuredModelConfig is the configuration for calls whose reply must be
// machine-parseable JSON (time parsing, screenshot analysis): temperature
// pinned low and JSON output requested from the server.
func StructuredModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: 0.0,
		TopP:        0.5,
		MaxTokens:   2048,
		JSONOutput:  true,
	}
}

// NewClient creates a new LLM client backed by a local Ollama server,
// taking model names and host from the environment when set.
func NewClient() (Client, error) {
	models := OllamaModels{
		Chat:      envOr("GLIMPSE_CHAT_MODEL", "llama3.2"),
		Vision:    envOr("GLIMPSE_VISION_MODEL", "llama3.2-vision"),
		Embedding: envOr("GLIMPSE_EMBED_MODEL", "nomic-embed-text"),
	}
	return NewOllamaClient(os.Getenv("OLLAMA_HOST"), models)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
