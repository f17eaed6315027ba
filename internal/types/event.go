package types

import "time"

// LifecyclePhase is the load phase reported with a tab change event.
type LifecyclePhase string

const (
	PhaseLoading     LifecyclePhase = "loading"
	PhaseComplete    LifecyclePhase = "complete"
	PhaseUnspecified LifecyclePhase = ""
)

// TabChangeEvent is a snapshot delivered on any observable tab change.
// NewTitle and NewURL are empty when the event did not carry them.
type TabChangeEvent struct {
	TabID      string
	NewTitle   string
	NewURL     string
	Phase      LifecyclePhase
	ObservedAt time.Time
}

// TabSnapshot is the view of a tab handed to the categorization pipeline.
// It carries the latest observed values at the moment the debounce window
// closed, not the values from any single event.
type TabSnapshot struct {
	TabID string
	Title string
	URL   string
}
