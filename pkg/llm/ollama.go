package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaModels names the models used for each kind of call. Embedding
// models and chat models are distinct in Ollama, and screenshot analysis
// needs a vision-capable one.
type OllamaModels struct {
	Chat      string
	Vision    string
	Embedding string
}

// OllamaClient talks to a local Ollama server through its official API
// client. It implements Client.
type OllamaClient struct {
	client *api.Client
	models OllamaModels
}

// NewOllamaClient creates a client for a local Ollama server. An empty
// baseURL defaults to the standard local address.
func NewOllamaClient(baseURL string, models OllamaModels) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", baseURL, err)
	}

	httpClient := &http.Client{
		Timeout: 5 * time.Minute, // generations over large screenshots can be slow
	}

	return &OllamaClient{
		client: api.NewClient(parsed, httpClient),
		models: models,
	}, nil
}

// Generate processes a single prompt and returns the full completion.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, config ModelConfig) (string, error) {
	return c.generate(ctx, c.models.Chat, prompt, nil, config)
}

// GenerateWithImages runs a multimodal prompt over the given images using
// the vision model.
func (c *OllamaClient) GenerateWithImages(ctx context.Context, prompt string, images [][]byte, config ModelConfig) (string, error) {
	imgs := make([]api.ImageData, len(images))
	for i, img := range images {
		imgs[i] = api.ImageData(img)
	}
	return c.generate(ctx, c.models.Vision, prompt, imgs, config)
}

func (c *OllamaClient) generate(ctx context.Context, model, prompt string, images []api.ImageData, config ModelConfig) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Images: images,
		Stream: &stream,
		Options: map[string]any{
			"temperature": config.Temperature,
			"top_p":       config.TopP,
			"num_predict": config.MaxTokens,
		},
	}
	if config.JSONOutput {
		req.Format = json.RawMessage(`"json"`)
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate (%s): %w", model, err)
	}

	return response.String(), nil
}

// Embed returns one embedding vector per input text, in input order.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embed(ctx, &api.EmbedRequest{
		Model: c.models.Embedding,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed (%s): %w", c.models.Embedding, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	return resp.Embeddings, nil
}

// Close cleans up any resources
func (c *OllamaClient) Close() error {
	// No cleanup needed for HTTP client
	return nil
}
