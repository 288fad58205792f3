package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampFormat is the canonical timestamp form used everywhere in the
// system: ISO-8601 with millisecond precision and an explicit UTC designator.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ErrInvalidRecord indicates a record missing its required text fields.
var ErrInvalidRecord = errors.New("record is missing summary or extracted text")

// ErrUnresolvableTimestamp indicates a timestamp that could not be converted
// to canonical form, even after trying the filename-safe encoding.
var ErrUnresolvableTimestamp = errors.New("timestamp cannot be resolved to a valid instant")

// ActivityRecord is one analyzed screenshot: the structured description
// produced by the vision model plus the capture instant. Field names match
// the JSON the analysis model is instructed to emit.
type ActivityRecord struct {
	Timestamp           string `json:"timestamp"`
	ActiveApp           string `json:"active_app"`
	Summary             string `json:"summary"`
	ExtractedText       string `json:"extracted_text"`
	TaskCategory        string `json:"task_category"`
	ProductivityScore   string `json:"productivity_score"`
	WorkflowSuggestions string `json:"workflow_suggestions"`
}

// Validate checks that the record carries the fields retrieval depends on.
// Records failing validation are never indexed.
func (r *ActivityRecord) Validate() error {
	if strings.TrimSpace(r.Summary) == "" || strings.TrimSpace(r.ExtractedText) == "" {
		return ErrInvalidRecord
	}
	return nil
}

// EmbeddingText returns the text that gets embedded for this record. The
// summary and the on-screen text together are what a user's query should
// match against, not the raw attribute soup.
func (r *ActivityRecord) EmbeddingText() string {
	return r.Summary + " " + r.ExtractedText
}

// Time parses the record's timestamp in canonical form.
func (r *ActivityRecord) Time() (time.Time, error) {
	t, err := time.Parse(TimestampFormat, r.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse record timestamp %q: %w", r.Timestamp, err)
	}
	return t, nil
}

// CanonicalTimestamp formats an instant in the canonical form.
func CanonicalTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ToFilenameSafe encodes a canonical timestamp string for use as a filename:
// the ':' and '.' characters inside the time-of-day portion become '-'.
// "2025-05-10T14:30:00.000Z" -> "2025-05-10T14-30-00-000Z".
func ToFilenameSafe(canonical string) string {
	i := strings.IndexByte(canonical, 'T')
	if i < 0 {
		return canonical
	}
	tod := strings.NewReplacer(":", "-", ".", "-").Replace(canonical[i+1:])
	return canonical[:i+1] + tod
}

// FromFilenameSafe reverses ToFilenameSafe, restoring the canonical form.
// It only touches the time-of-day portion; the date keeps its dashes.
func FromFilenameSafe(encoded string) string {
	i := strings.IndexByte(encoded, 'T')
	if i < 0 {
		return encoded
	}
	tod := encoded[i+1:]
	// HH-MM-SS-mmm(Z): first two dashes become ':', the third becomes '.'.
	parts := strings.SplitN(tod, "-", 4)
	if len(parts) != 4 {
		return encoded
	}
	return encoded[:i+1] + parts[0] + ":" + parts[1] + ":" + parts[2] + "." + parts[3]
}

// NormalizeTimestamp converts a stored timestamp to canonical form. It
// accepts a timestamp that already parses directly, or one in the
// filename-safe encoding. Anything else is unresolvable; callers must skip
// the record rather than fabricate an instant.
func NormalizeTimestamp(raw string) (string, error) {
	if t, err := time.Parse(TimestampFormat, raw); err == nil {
		return CanonicalTimestamp(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return CanonicalTimestamp(t), nil
	}
	if t, err := time.Parse(TimestampFormat, FromFilenameSafe(raw)); err == nil {
		return CanonicalTimestamp(t), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnresolvableTimestamp, raw)
}
