package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mbright/glimpse/pkg/llm"
	"github.com/mbright/glimpse/pkg/models"
	"github.com/mbright/glimpse/pkg/timeparse"
	"github.com/mbright/glimpse/pkg/vector"
)

// keywordEmbedder produces deterministic two-dimensional vectors from
// keyword counts, so similarity ranking in tests is predictable.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		out[i] = []float32{
			float32(strings.Count(lower, "invoice")) + 0.01,
			float32(strings.Count(lower, "dashboard")) + 0.01,
		}
	}
	return out, nil
}

// countingClient records Generate invocations and replies with a fixed
// answer.
type countingClient struct {
	calls   int
	prompts []string
	answer  string
	err     error
}

func (c *countingClient) Generate(_ context.Context, prompt string, _ llm.ModelConfig) (string, error) {
	c.calls++
	c.prompts = append(c.prompts, prompt)
	return c.answer, c.err
}

func (c *countingClient) GenerateWithImages(context.Context, string, [][]byte, llm.ModelConfig) (string, error) {
	return "", errors.New("not used")
}

func (c *countingClient) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (c *countingClient) Close() error { return nil }

// staticResolver returns a fixed window and cleaned query.
type staticResolver struct {
	window  *models.TimeWindow
	cleaned string
}

func (s staticResolver) Resolve(_ context.Context, raw string) (*models.TimeWindow, string) {
	if s.cleaned != "" {
		return s.window, s.cleaned
	}
	return s.window, raw
}

func activityAt(t time.Time, summary, text string) models.ActivityRecord {
	return models.ActivityRecord{
		Timestamp:     models.CanonicalTimestamp(t),
		Summary:       summary,
		ExtractedText: text,
	}
}

func insert(t *testing.T, store *vector.Store, record models.ActivityRecord) {
	t.Helper()
	if err := store.Insert(context.Background(), record.Timestamp, record.EmbeddingText(), record); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestAnswerEmptyIndexSkipsSummarizer(t *testing.T) {
	store := vector.NewStore(keywordEmbedder{})
	summarizer := &countingClient{answer: "should never be seen"}

	o := NewOrchestrator(store, staticResolver{}, summarizer)
	answer := o.Answer(context.Background(), "what did I do?")

	if answer != NoMatchMessage {
		t.Errorf("answer = %q, want the fixed no-match message", answer)
	}
	if summarizer.calls != 0 {
		t.Errorf("summarizer called %d times on an empty result set, want 0", summarizer.calls)
	}
}

func TestAnswerYesterdayInvoicesWithFallbackParser(t *testing.T) {
	// Primary time parser unreachable: the deterministic fallback maps
	// "yesterday" to day 1, so only day-1 records are eligible and the two
	// invoice records outrank the dashboard one.
	day1 := time.Date(2025, 5, 10, 0, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)

	store := vector.NewStore(keywordEmbedder{})
	insert(t, store, activityAt(day1.Add(9*time.Hour), "reviewing billing", "invoice from supplier"))
	insert(t, store, activityAt(day1.Add(11*time.Hour), "watching metrics", "dashboard metrics overview"))
	insert(t, store, activityAt(day1.Add(15*time.Hour), "email triage", "invoice reminder follow-up"))
	insert(t, store, activityAt(day2.Add(9*time.Hour), "drafting billing", "invoice draft for client"))

	resolver := timeparse.NewResolver(&countingClient{err: errors.New("connection refused")})
	resolver.Now = func() time.Time { return day2.Add(10 * time.Hour) }

	summarizer := &countingClient{answer: "You reviewed two invoices yesterday."}
	o := NewOrchestrator(store, resolver, summarizer)

	answer := o.Answer(context.Background(), "What invoices did I see yesterday?")

	if answer != "You reviewed two invoices yesterday." {
		t.Errorf("answer = %q, want the summarizer's text verbatim", answer)
	}
	if summarizer.calls != 1 {
		t.Fatalf("summarizer called %d times, want 1", summarizer.calls)
	}

	prompt := summarizer.prompts[0]
	if strings.Contains(prompt, "invoice draft for client") {
		t.Error("day-2 record leaked into the yesterday window")
	}
	if !strings.Contains(prompt, "invoice from supplier") || !strings.Contains(prompt, "invoice reminder follow-up") {
		t.Error("day-1 invoice records missing from the context")
	}
	if !strings.Contains(prompt, "What invoices did I see yesterday?") {
		t.Error("summarizer prompt should carry the original raw query")
	}

	// Ranking check: the context block lists results in similarity order.
	dashboardPos := strings.Index(prompt, "dashboard metrics overview")
	if dashboardPos < 0 {
		t.Fatal("dashboard record missing from the context")
	}
	for _, invoiceDoc := range []string{"invoice from supplier", "invoice reminder follow-up"} {
		if pos := strings.Index(prompt, invoiceDoc); pos > dashboardPos {
			t.Errorf("%q ranked below the dashboard record", invoiceDoc)
		}
	}
}

func TestAnswerWindowExcludesUnparseableTimestamps(t *testing.T) {
	store := vector.NewStore(keywordEmbedder{})
	insert(t, store, models.ActivityRecord{
		Timestamp:     "not a timestamp",
		Summary:       "broken clock",
		ExtractedText: "invoice invoice invoice",
	})

	window := &models.TimeWindow{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	summarizer := &countingClient{answer: "ok"}
	o := NewOrchestrator(store, staticResolver{window: window}, summarizer)

	answer := o.Answer(context.Background(), "invoices?")

	if answer != NoMatchMessage {
		t.Errorf("record with unparseable timestamp was included: %q", answer)
	}
	if summarizer.calls != 0 {
		t.Error("summarizer should not run when filtering leaves nothing")
	}
}

func TestAnswerSummarizerFailureIsContained(t *testing.T) {
	store := vector.NewStore(keywordEmbedder{})
	insert(t, store, activityAt(time.Now(), "reading", "invoice"))

	summarizer := &countingClient{err: errors.New("model exploded")}
	o := NewOrchestrator(store, staticResolver{}, summarizer)

	answer := o.Answer(context.Background(), "what invoices?")

	if answer == "" || strings.Contains(answer, "model exploded") {
		t.Errorf("raw error leaked to the user: %q", answer)
	}
	if answer != errorMessage {
		t.Errorf("answer = %q, want the generic error message", answer)
	}
}

func TestAnswerUntimedQueryUsesDefaultLimit(t *testing.T) {
	store := vector.NewStore(keywordEmbedder{})
	for i := 0; i < DefaultLimit+3; i++ {
		insert(t, store, activityAt(time.Now().Add(time.Duration(i)*time.Minute), "reading", "invoice"))
	}

	summarizer := &countingClient{answer: "ok"}
	o := NewOrchestrator(store, staticResolver{}, summarizer)
	o.Answer(context.Background(), "invoices")

	if summarizer.calls != 1 {
		t.Fatalf("summarizer calls = %d", summarizer.calls)
	}
	lines := strings.Count(strings.Split(summarizer.prompts[0], "Question:")[0], "[")
	if lines > DefaultLimit {
		t.Errorf("context holds %d records, want at most %d", lines, DefaultLimit)
	}
}
