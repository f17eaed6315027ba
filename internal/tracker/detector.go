package tracker

import (
	"time"

	"github.com/tabsense/tabsense/internal/types"
)

// Default detection tuning. Empirically chosen; overridable via config.
const (
	DefaultQuietInterval  = 1000 * time.Millisecond
	DefaultBurstWindow    = 1000 * time.Millisecond
	DefaultBurstThreshold = 2
)

// Detector decides whether an incoming change event warrants expensive
// reprocessing. Title and URL changes are the strongest signal of new
// content; the quiet-interval and burst clauses catch single-page apps
// that fire repeated complete/title events without URL changes during
// client-side navigation.
type Detector struct {
	QuietInterval  time.Duration
	BurstWindow    time.Duration
	BurstThreshold int
}

func NewDetector(quietInterval, burstWindow time.Duration, burstThreshold int) Detector {
	if quietInterval <= 0 {
		quietInterval = DefaultQuietInterval
	}
	if burstWindow <= 0 {
		burstWindow = DefaultBurstWindow
	}
	if burstThreshold < 1 {
		burstThreshold = DefaultBurstThreshold
	}
	return Detector{
		QuietInterval:  quietInterval,
		BurstWindow:    burstWindow,
		BurstThreshold: burstThreshold,
	}
}

// ShouldProcess is a pure decision over the incoming event and the
// tracking state as it was before this event was recorded.
func (d Detector) ShouldProcess(ev types.TabChangeEvent, prev TabTrackingState, existed bool) bool {
	// First-ever observation of the tab.
	if !existed || prev.LastSeenURL == "" {
		return true
	}

	// Never reprocess a title that already went through the pipeline,
	// even when other fields changed.
	if ev.NewTitle != "" && ev.NewTitle == prev.LastProcessedTitle {
		return false
	}

	if ev.NewTitle != "" && ev.NewTitle != prev.LastSeenTitle {
		return true
	}
	if ev.NewURL != "" && ev.NewURL != prev.LastSeenURL {
		return true
	}
	if ev.Phase == types.PhaseComplete && ev.ObservedAt.Sub(prev.LastDecisionTime) > d.QuietInterval {
		return true
	}
	// SPA churn: rapid repeated mutation with a fresh title deserves a
	// run even without a complete phase.
	if prev.BurstCount >= d.BurstThreshold && ev.NewTitle != "" && ev.NewTitle != prev.LastSeenTitle {
		return true
	}

	return false
}
