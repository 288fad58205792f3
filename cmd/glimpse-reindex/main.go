package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mbright/glimpse/pkg/config"
	"github.com/mbright/glimpse/pkg/history"
	"github.com/mbright/glimpse/pkg/llm"
	"github.com/mbright/glimpse/pkg/logging"
	"github.com/mbright/glimpse/pkg/vector"
)

var (
	configPath = flag.String("config", "glimpse.yaml", "Path to the YAML config file")
	recordsDir = flag.String("records-dir", "", "Records directory to replay (defaults to the configured data dir)")
)

// glimpse-reindex replays a records directory through the ingestion path
// and reports what would make it into the index. Useful after moving or
// hand-editing record files.
func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel)

	dir := *recordsDir
	if dir == "" {
		dir = cfg.DataDir
	}

	client, err := llm.NewOllamaClient(cfg.OllamaHost, llm.OllamaModels{
		Chat:      cfg.ChatModel,
		Vision:    cfg.VisionModel,
		Embedding: cfg.EmbeddingModel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating ollama client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	store := vector.NewStore(client)

	stats, err := history.Load(context.Background(), store, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error replaying records: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanned %d files: %d indexed, %d skipped, %d embedding failures\n",
		stats.FilesScanned, stats.Loaded, stats.Skipped, stats.EmbedFailed)
}
