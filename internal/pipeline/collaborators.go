package pipeline

import "context"

// Summarizer condenses a tab title into free-form summary text. The text
// may be multi-line with list-marker-prefixed lines that downstream
// consumers render as a list.
type Summarizer interface {
	Summarize(ctx context.Context, title string) (string, error)
}

// Classification is the structured response of the classification
// collaborator.
type Classification struct {
	Category        string
	ConfidenceScore float64
	ExplanationText string
}

// Classifier assigns a category to sanitized summary text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}
