package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mbright/glimpse/pkg/llm"
	"github.com/mbright/glimpse/pkg/models"
	"github.com/mbright/glimpse/pkg/vector"
)

const (
	// DefaultLimit is the result budget for untimed queries.
	DefaultLimit = 5
	// WindowedLimit is the larger budget used when a time window applies,
	// compensating for candidates the window filters out.
	WindowedLimit = 20

	// NoMatchMessage is returned when retrieval finds nothing; the
	// summarizer is never invoked on an empty context.
	NoMatchMessage = "I couldn't find any recorded activity matching that."

	errorMessage = "Sorry, something went wrong answering that. Please try again."
)

const answerPromptTemplate = `You answer questions about the user's past screen activity.
Below is a list of recorded activity snapshots, each prefixed with its capture time.

%s

Using only the records above, answer the user's question concisely.
If the records don't contain the answer, say so.

Question: %s`

// TimeResolver resolves a raw query into an optional time window and a
// cleaned query string.
type TimeResolver interface {
	Resolve(ctx context.Context, rawQuery string) (*models.TimeWindow, string)
}

// Orchestrator answers free-text questions by combining time resolution,
// similarity retrieval, and summarization.
type Orchestrator struct {
	store    *vector.Store
	resolver TimeResolver
	client   llm.Client
	log      *logrus.Entry
}

// NewOrchestrator wires an orchestrator over the given index, resolver, and
// summarization client.
func NewOrchestrator(store *vector.Store, resolver TimeResolver, client llm.Client) *Orchestrator {
	return &Orchestrator{
		store:    store,
		resolver: resolver,
		client:   client,
		log:      logrus.WithField("component", "query"),
	}
}

// Answer resolves the query's time range, retrieves matching records, and
// summarizes them into a natural-language answer. It never returns an
// error: one bad query must not end the interactive session, so every
// failure is logged and collapsed into a short generic message.
func (o *Orchestrator) Answer(ctx context.Context, rawQuery string) string {
	window, cleaned := o.resolver.Resolve(ctx, rawQuery)

	var (
		results []vector.SearchResult
		err     error
	)
	if window != nil {
		o.log.WithFields(logrus.Fields{
			"start": window.Start,
			"end":   window.End,
		}).Debug("applying time window")
		results, err = o.store.Query(ctx, cleaned, WindowedLimit, withinWindow(*window))
	} else {
		results, err = o.store.Query(ctx, cleaned, DefaultLimit, nil)
	}
	if err != nil {
		o.log.WithError(err).Error("retrieval failed")
		return errorMessage
	}

	if len(results) == 0 {
		return NoMatchMessage
	}

	prompt := fmt.Sprintf(answerPromptTemplate, buildContext(results), rawQuery)
	answer, err := o.client.Generate(ctx, prompt, llm.DefaultModelConfig())
	if err != nil {
		o.log.WithError(err).Error("summarizer failed")
		return errorMessage
	}

	return answer
}

// withinWindow builds a predicate keeping records whose timestamp falls in
// the window. Records with a missing or unparseable timestamp are excluded,
// never included by default.
func withinWindow(window models.TimeWindow) vector.Predicate {
	return func(record models.ActivityRecord) bool {
		t, err := record.Time()
		if err != nil {
			return false
		}
		return window.Contains(t)
	}
}

// buildContext formats retrieved records as one timestamped line block for
// the summarization prompt.
func buildContext(results []vector.SearchResult) string {
	var b strings.Builder
	for _, res := range results {
		b.WriteString("[")
		b.WriteString(res.Record.Timestamp)
		b.WriteString("] ")
		b.WriteString(res.Document)
		b.WriteString("\n")
	}
	return b.String()
}
