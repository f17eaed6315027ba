package tracker

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the delay after the last qualifying event
// before the pipeline actually runs.
const DefaultDebounceWindow = 500 * time.Millisecond

// Scheduler coalesces rapid qualifying events per tab into a single
// deferred invocation. The last call within the window wins; superseded
// work functions never run.
type Scheduler struct {
	window time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewScheduler(window time.Duration) *Scheduler {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Scheduler{
		window: window,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule cancels any pending timer for the tab and starts a new one.
// fn runs only if no later Schedule or Cancel for the same tab arrives
// within the window.
func (s *Scheduler) Schedule(tabID string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if t, ok := s.timers[tabID]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(s.window, func() {
		s.mu.Lock()
		// A fired timer may have lost a race with a newer Schedule or a
		// Cancel; only the timer still registered for the tab runs.
		if s.timers[tabID] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, tabID)
		s.mu.Unlock()
		fn()
	})
	s.timers[tabID] = timer
}

// Cancel removes a pending timer without running it.
func (s *Scheduler) Cancel(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[tabID]; ok {
		t.Stop()
		delete(s.timers, tabID)
	}
}

// Pending reports whether a timer is outstanding for the tab.
func (s *Scheduler) Pending(tabID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[tabID]
	return ok
}

// Stop cancels all pending timers and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
