package tracker

import (
	"sync"
	"time"

	"github.com/tabsense/tabsense/internal/types"
)

// TabTrackingState is the per-tab record of observed change history.
// LastSeenTitle/LastSeenURL track the newest values regardless of whether
// they were processed; LastProcessedTitle suppresses redundant re-runs.
type TabTrackingState struct {
	LastSeenTitle      string
	LastSeenURL        string
	LastProcessedTitle string
	LastDecisionTime   time.Time
	BurstCount         int
}

// StateStore owns one TabTrackingState per live tab. A record exists iff
// at least one change event was observed for the tab since it was created
// or since the agent started.
type StateStore struct {
	mu   sync.RWMutex
	tabs map[string]*TabTrackingState
}

func NewStateStore() *StateStore {
	return &StateStore{tabs: make(map[string]*TabTrackingState)}
}

// Observe records a change event for a tab, creating the record on first
// observation. It returns a copy of the state as it was before this event,
// which is what the change detector evaluates against. Fields absent from
// the event leave the record unchanged. The decision clock and the burst
// counter are advanced as part of the same critical section: an evaluation
// within burstWindow of the previous one counts toward a burst, anything
// slower resets the count.
func (s *StateStore) Observe(ev types.TabChangeEvent, burstWindow time.Duration) (prev TabTrackingState, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tabs[ev.TabID]
	if !ok {
		st = &TabTrackingState{LastDecisionTime: ev.ObservedAt}
		s.tabs[ev.TabID] = st
	} else {
		prev = *st
		existed = true
		if ev.ObservedAt.Sub(st.LastDecisionTime) <= burstWindow {
			st.BurstCount++
		} else {
			st.BurstCount = 0
		}
		st.LastDecisionTime = ev.ObservedAt
	}

	if ev.NewTitle != "" {
		st.LastSeenTitle = ev.NewTitle
	}
	if ev.NewURL != "" {
		st.LastSeenURL = ev.NewURL
	}

	return prev, existed
}

// Snapshot returns a copy of the current state for a tab.
func (s *StateStore) Snapshot(tabID string) (TabTrackingState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tabs[tabID]
	if !ok {
		return TabTrackingState{}, false
	}
	return *st, true
}

// MarkProcessed records the title that last entered the pipeline for a
// tab. Called once a run was actually accepted, not for skipped inputs.
func (s *StateStore) MarkProcessed(tabID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.tabs[tabID]; ok {
		st.LastProcessedTitle = title
	}
}

// Remove deletes the record for a closed tab.
func (s *StateStore) Remove(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tabs, tabID)
}

func (s *StateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tabs)
}
