package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mbright/glimpse/pkg/analysis"
	"github.com/mbright/glimpse/pkg/capture"
	"github.com/mbright/glimpse/pkg/config"
	"github.com/mbright/glimpse/pkg/history"
	"github.com/mbright/glimpse/pkg/llm"
	"github.com/mbright/glimpse/pkg/logging"
	"github.com/mbright/glimpse/pkg/query"
	"github.com/mbright/glimpse/pkg/timeparse"
	"github.com/mbright/glimpse/pkg/vector"
)

var (
	configPath = flag.String("config", "glimpse.yaml", "Path to the YAML config file")
	noCapture  = flag.Bool("no-capture", false, "Query existing records without capturing new screenshots")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel)
	log := logrus.WithFields(logrus.Fields{
		"component": "main",
		"session":   uuid.New().String(),
	})

	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	client, err := llm.NewOllamaClient(cfg.OllamaHost, llm.OllamaModels{
		Chat:      cfg.ChatModel,
		Vision:    cfg.VisionModel,
		Embedding: cfg.EmbeddingModel,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create ollama client")
	}
	defer client.Close()

	store := vector.NewStore(client)

	// Replay persisted records so the index covers everything captured in
	// earlier sessions.
	stats, err := history.Load(ctx, store, cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("failed to replay history")
	}

	if !*noCapture {
		loop := capture.NewLoop(analysis.NewAnalyzer(client), store, cfg.DataDir, cfg.CaptureEvery.Std())
		go loop.Run(ctx)
	}

	orchestrator := query.NewOrchestrator(store, timeparse.NewResolver(client), client)

	runPrompt(ctx, orchestrator, stats.Loaded)
}

// runPrompt is the interactive query loop: each line is a question, "exit"
// ends the session.
func runPrompt(ctx context.Context, orchestrator *query.Orchestrator, loaded int) {
	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Println(boldGreen("Glimpse — ask about your past screen activity"))
	fmt.Printf("Loaded %s past activity records.\n", boldCyan(fmt.Sprint(loaded)))
	fmt.Println("Type a question and press Enter. Type 'exit' to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		if strings.EqualFold(input, "exit") {
			break
		}
		if input == "" {
			continue
		}

		fmt.Print(boldCyan("Glimpse: "))
		fmt.Println(orchestrator.Answer(ctx, input))
		fmt.Println()
	}
}
