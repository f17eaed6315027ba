package types

import "time"

// CategoryError is the sentinel category for failed enrichment runs.
const CategoryError = "Error"

// EnrichmentResult is the immutable output of one pipeline run for a tab.
// A failed run still produces a result: Category is CategoryError,
// ConfidenceScore is 0 and ExplanationText carries the failure reason.
type EnrichmentResult struct {
	TabID           string    `json:"tabId"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	SummaryText     string    `json:"summaryText"`
	Category        string    `json:"category"`
	ConfidenceScore float64   `json:"confidenceScore"`
	ExplanationText string    `json:"explanationText"`
	ProducedAt      time.Time `json:"producedAt"`
}

// FailedResult builds the Error-category result for a run that could not
// complete.
func FailedResult(snap TabSnapshot, reason string, now time.Time) EnrichmentResult {
	return EnrichmentResult{
		TabID:           snap.TabID,
		URL:             snap.URL,
		Title:           snap.Title,
		Category:        CategoryError,
		ConfidenceScore: 0,
		ExplanationText: reason,
		ProducedAt:      now,
	}
}
