package timeparse

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mbright/glimpse/pkg/llm"
	"github.com/mbright/glimpse/pkg/models"
)

// PlaceholderQuery is substituted when stripping the time phrases leaves
// nothing to search for. An empty string makes a useless embedding.
const PlaceholderQuery = "recent activity"

const promptTemplate = `You extract time ranges from questions about past screen activity.
The current time is %s.

Given the user's question, reply with ONLY a JSON object, no prose:
{
  "startTimeISO": "<range start as ISO-8601 UTC with milliseconds, or null>",
  "endTimeISO": "<range end as ISO-8601 UTC with milliseconds, or null>",
  "cleanedQuery": "<the question with all time phrases removed>"
}

If the question contains no time reference, set both times to null and
return the question unchanged as cleanedQuery.

Question: %s`

// parserReply is the structured reply expected from the language model.
// Replies are untrusted input; every field is validated before use.
type parserReply struct {
	StartTimeISO *string `json:"startTimeISO"`
	EndTimeISO   *string `json:"endTimeISO"`
	CleanedQuery string  `json:"cleanedQuery"`
}

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Resolver turns a free-text query into an optional time window plus the
// residual query text. The primary parser is a language model; a
// deterministic fallback engages when the model is unreachable.
type Resolver struct {
	client llm.Client
	log    *logrus.Entry

	// Now supplies the current instant for relative-reference resolution.
	// Overridable so "yesterday" is testable.
	Now func() time.Time
}

// NewResolver creates a resolver using the given client as its primary
// parser.
func NewResolver(client llm.Client) *Resolver {
	return &Resolver{
		client: client,
		log:    logrus.WithField("component", "timeparse"),
		Now:    time.Now,
	}
}

// Resolve parses rawQuery into a time window (nil when the query carries no
// usable time reference) and a cleaned query string suitable for embedding.
//
// The primary language-model parse is trusted only when it returns a fully
// consistent reply: both bounds present and parseable, or neither. A
// partial range is never honored as a half-open one — that would silently
// return wrong results. Outright transport failure falls through to a
// deterministic parser that recognizes "yesterday" and literal YYYY-MM-DD
// dates.
func (r *Resolver) Resolve(ctx context.Context, rawQuery string) (*models.TimeWindow, string) {
	prompt := fmt.Sprintf(promptTemplate, models.CanonicalTimestamp(r.Now()), rawQuery)

	reply, err := r.client.Generate(ctx, prompt, llm.StructuredModelConfig())
	if err != nil {
		r.log.WithError(err).Warn("primary time parser unreachable, using deterministic fallback")
		return r.fallbackParse(rawQuery), cleanedOrOriginal("", rawQuery)
	}

	window, cleaned := r.validateReply(reply, rawQuery)
	return window, cleaned
}

// validateReply applies the both-or-neither policy to the model's reply.
// Any inconsistency degrades to "no time filter, original query".
func (r *Resolver) validateReply(reply, rawQuery string) (*models.TimeWindow, string) {
	var parsed parserReply
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		r.log.WithError(err).Warn("time parser reply is not valid JSON, ignoring time filter")
		return nil, cleanedOrOriginal("", rawQuery)
	}

	cleaned := cleanedOrOriginal(parsed.CleanedQuery, rawQuery)

	hasStart := parsed.StartTimeISO != nil && strings.TrimSpace(*parsed.StartTimeISO) != ""
	hasEnd := parsed.EndTimeISO != nil && strings.TrimSpace(*parsed.EndTimeISO) != ""

	switch {
	case !hasStart && !hasEnd:
		return nil, cleaned
	case hasStart != hasEnd:
		r.log.WithFields(logrus.Fields{
			"has_start": hasStart,
			"has_end":   hasEnd,
		}).Warn("time parser returned a partial range, ignoring time filter")
		return nil, cleanedOrOriginal("", rawQuery)
	}

	start, err := parseInstant(*parsed.StartTimeISO)
	if err != nil {
		r.log.WithError(err).Warn("time parser start bound unparseable, ignoring time filter")
		return nil, cleanedOrOriginal("", rawQuery)
	}
	end, err := parseInstant(*parsed.EndTimeISO)
	if err != nil {
		r.log.WithError(err).Warn("time parser end bound unparseable, ignoring time filter")
		return nil, cleanedOrOriginal("", rawQuery)
	}

	return &models.TimeWindow{Start: start, End: end}, cleaned
}

// fallbackParse is the deterministic parser used when the language model is
// unreachable. It recognizes exactly two patterns: the word "yesterday" and
// an embedded YYYY-MM-DD date, each mapped to the full local civil day.
func (r *Resolver) fallbackParse(rawQuery string) *models.TimeWindow {
	if strings.Contains(strings.ToLower(rawQuery), "yesterday") {
		y := r.Now().AddDate(0, 0, -1)
		return dayWindow(y)
	}

	if match := datePattern.FindString(rawQuery); match != "" {
		day, err := time.ParseInLocation("2006-01-02", match, time.Local)
		if err != nil {
			return nil
		}
		return dayWindow(day)
	}

	return nil
}

// dayWindow covers one local civil day, midnight to the last millisecond.
func dayWindow(t time.Time) *models.TimeWindow {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999e6, time.Local)
	return &models.TimeWindow{Start: start, End: end}
}

func parseInstant(iso string) (time.Time, error) {
	if t, err := time.Parse(models.TimestampFormat, iso); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse instant %q: %w", iso, err)
	}
	return t, nil
}

// cleanedOrOriginal picks the query text to embed: the parser's cleaned
// query when it has substance, the raw query otherwise, and a generic
// placeholder when even the raw query is blank.
func cleanedOrOriginal(cleaned, rawQuery string) string {
	if s := strings.TrimSpace(cleaned); s != "" {
		return s
	}
	if s := strings.TrimSpace(rawQuery); s != "" {
		return s
	}
	return PlaceholderQuery
}

// extractJSON strips markdown code fences and surrounding prose, returning
// the first {...} block. Models wrap JSON in fences often enough that
// trusting the raw reply would reject good answers.
func extractJSON(reply string) string {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return reply
	}
	return reply[start : end+1]
}
