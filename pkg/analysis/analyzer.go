package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mbright/glimpse/pkg/llm"
	"github.com/mbright/glimpse/pkg/models"
)

const analysisPrompt = `Analyze this screenshot of a computer screen.
Reply with ONLY a JSON object, no prose, with these exact keys:
{
  "active_app": "<the application in the foreground>",
  "summary": "<one or two sentences describing what the user is doing>",
  "extracted_text": "<the visible on-screen text, condensed>",
  "task_category": "<one of: work, communication, browsing, entertainment, development, other>",
  "productivity_score": "<1-10 as a string>",
  "workflow_suggestions": "<one short suggestion, or an empty string>"
}
The summary and extracted_text fields must not be empty.`

// Analyzer turns raw screenshots into structured activity records via a
// vision-capable model.
type Analyzer struct {
	client llm.Client
}

// NewAnalyzer creates an analyzer over the given client.
func NewAnalyzer(client llm.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze sends the screenshot to the vision model and parses its reply
// into an activity record stamped with capturedAt. The reply is untrusted:
// it is rejected when it is not valid JSON or is missing the required
// summary / extracted text fields.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, capturedAt time.Time) (*models.ActivityRecord, error) {
	reply, err := a.client.GenerateWithImages(ctx, analysisPrompt, [][]byte{image}, llm.StructuredModelConfig())
	if err != nil {
		return nil, fmt.Errorf("vision analysis: %w", err)
	}

	var record models.ActivityRecord
	if err := json.Unmarshal([]byte(extractJSON(reply)), &record); err != nil {
		return nil, fmt.Errorf("parse analysis reply: %w", err)
	}

	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("analysis reply incomplete: %w", err)
	}

	// The capture instant is authoritative; whatever the model put in the
	// timestamp field is discarded.
	record.Timestamp = models.CanonicalTimestamp(capturedAt)

	return &record, nil
}

// extractJSON returns the first {...} block of the reply, tolerating
// markdown fences and stray prose around the JSON.
func extractJSON(reply string) string {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return reply
	}
	return reply[start : end+1]
}
