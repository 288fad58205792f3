package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbright/glimpse/pkg/llm"
)

type fakeVisionClient struct {
	reply  string
	err    error
	images int
}

func (f *fakeVisionClient) Generate(context.Context, string, llm.ModelConfig) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeVisionClient) GenerateWithImages(_ context.Context, _ string, images [][]byte, _ llm.ModelConfig) (string, error) {
	f.images = len(images)
	return f.reply, f.err
}

func (f *fakeVisionClient) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (f *fakeVisionClient) Close() error { return nil }

var capturedAt = time.Date(2025, 5, 10, 14, 30, 0, 0, time.UTC)

func TestAnalyzeParsesFencedReply(t *testing.T) {
	client := &fakeVisionClient{reply: "```json\n" + `{
		"active_app": "Firefox",
		"summary": "reading documentation",
		"extracted_text": "Go memory model",
		"task_category": "development",
		"productivity_score": "8",
		"workflow_suggestions": ""
	}` + "\n```"}

	record, err := NewAnalyzer(client).Analyze(context.Background(), []byte{0x89, 'P', 'N', 'G'}, capturedAt)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if client.images != 1 {
		t.Errorf("sent %d images, want 1", client.images)
	}
	if record.ActiveApp != "Firefox" || record.Summary != "reading documentation" {
		t.Errorf("record = %+v", record)
	}
	// The capture instant wins, whatever the model returned.
	if record.Timestamp != "2025-05-10T14:30:00.000Z" {
		t.Errorf("timestamp = %q, want the canonical capture instant", record.Timestamp)
	}
}

func TestAnalyzeRejectsBadReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "It looks like a browser window."},
		{"missing summary", `{"active_app": "x", "extracted_text": "y"}`},
		{"missing extracted text", `{"active_app": "x", "summary": "y"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeVisionClient{reply: tt.reply}
			if _, err := NewAnalyzer(client).Analyze(context.Background(), nil, capturedAt); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestAnalyzeCollaboratorFailure(t *testing.T) {
	client := &fakeVisionClient{err: errors.New("vision model offline")}
	if _, err := NewAnalyzer(client).Analyze(context.Background(), nil, capturedAt); err == nil {
		t.Error("expected an error when the collaborator fails")
	}
}
