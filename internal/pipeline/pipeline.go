package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tabsense/tabsense/internal/types"
)

// minTitleLength disqualifies placeholder titles before any collaborator
// call is made.
const minTitleLength = 2

// ResultWriter persists the latest result for a tab.
type ResultWriter interface {
	Put(tabID string, res types.EnrichmentResult) error
}

// Broadcaster pushes a result to subscribers.
type Broadcaster interface {
	Broadcast(tabID string, res types.EnrichmentResult)
}

// Pipeline orchestrates the two-stage enrichment per tab: summarize,
// sanitize, categorize. Every accepted snapshot produces a result,
// success or failure, which is stored and broadcast.
type Pipeline struct {
	summarizer Summarizer
	classifier Classifier
	results    ResultWriter
	bus        Broadcaster
	timeout    time.Duration
	now        func() time.Time
}

func New(summarizer Summarizer, classifier Classifier, results ResultWriter, bus Broadcaster, timeout time.Duration) *Pipeline {
	return &Pipeline{
		summarizer: summarizer,
		classifier: classifier,
		results:    results,
		bus:        bus,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Run executes one enrichment for a tab snapshot. It reports whether the
// snapshot was accepted; a too-short title is skipped entirely with no
// result and no notification.
func (p *Pipeline) Run(ctx context.Context, snap types.TabSnapshot) bool {
	if len(strings.TrimSpace(snap.Title)) < minTitleLength {
		slog.Debug("skipping tab, title too short", "tab_id", snap.TabID, "title", snap.Title)
		return false
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res := p.enrich(ctx, snap)

	if err := p.results.Put(snap.TabID, res); err != nil {
		slog.Error("failed to store enrichment result", "tab_id", snap.TabID, "error", err)
	}
	p.bus.Broadcast(snap.TabID, res)

	slog.Info("tab enriched",
		"tab_id", snap.TabID,
		"category", res.Category,
		"confidence", res.ConfidenceScore,
	)
	return true
}

func (p *Pipeline) enrich(ctx context.Context, snap types.TabSnapshot) types.EnrichmentResult {
	summary, err := p.summarizer.Summarize(ctx, snap.Title)
	if err != nil {
		slog.Warn("summarization failed", "tab_id", snap.TabID, "error", err)
		return types.FailedResult(snap, err.Error(), p.now())
	}
	summary = stripInlineListMarkers(summary)

	cls, err := p.classifier.Classify(ctx, sanitize(summary))
	if err != nil {
		slog.Warn("classification failed", "tab_id", snap.TabID, "error", err)
		return types.FailedResult(snap, err.Error(), p.now())
	}

	return types.EnrichmentResult{
		TabID:           snap.TabID,
		URL:             snap.URL,
		Title:           snap.Title,
		SummaryText:     summary,
		Category:        cls.Category,
		ConfidenceScore: cls.ConfidenceScore,
		ExplanationText: cls.ExplanationText,
		ProducedAt:      p.now(),
	}
}
