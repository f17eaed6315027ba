package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tabsense/tabsense/internal/types"
)

// Runner executes one enrichment run for a tab snapshot. It reports
// whether the snapshot was accepted; disqualified inputs (short titles)
// return false without producing a result.
type Runner interface {
	Run(ctx context.Context, snap types.TabSnapshot) bool
}

// ResultPurger deletes a tab's cached result. Declared here so the
// tracker does not import the store package directly.
type ResultPurger interface {
	Remove(tabID string) error
}

// Tracker funnels tab change events through the state store, the change
// detector and the debounce scheduler, and launches pipeline runs. All
// per-tab mutation goes through here, so pipelines for distinct tabs run
// concurrently while each tab stays sequenced.
type Tracker struct {
	ctx      context.Context
	detector Detector
	states   *StateStore
	sched    *Scheduler
	runner   Runner
	results  ResultPurger

	mu       sync.Mutex
	inflight map[string]*flight
	active   string
}

// flight tracks one tab's in-progress run. queued marks that a qualifying
// event arrived mid-run and exactly one follow-up with the latest
// snapshot is owed.
type flight struct {
	queued bool
}

func New(ctx context.Context, detector Detector, states *StateStore, sched *Scheduler, runner Runner, results ResultPurger) *Tracker {
	return &Tracker{
		ctx:      ctx,
		detector: detector,
		states:   states,
		sched:    sched,
		runner:   runner,
		results:  results,
		inflight: make(map[string]*flight),
	}
}

// HandleEvent processes one tab change event end to end: record it,
// decide, and (re)schedule the debounced pipeline invocation when it
// qualifies.
func (t *Tracker) HandleEvent(ev types.TabChangeEvent) {
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now()
	}

	t.mu.Lock()
	t.active = ev.TabID
	t.mu.Unlock()

	prev, existed := t.states.Observe(ev, t.detector.BurstWindow)
	if !t.detector.ShouldProcess(ev, prev, existed) {
		return
	}

	slog.Debug("tab change qualifies",
		"tab_id", ev.TabID,
		"title", ev.NewTitle,
		"phase", string(ev.Phase),
	)

	tabID := ev.TabID
	t.sched.Schedule(tabID, func() { t.fire(tabID) })
}

// HandleRemoved tears down everything owned for a closed tab: tracking
// state, pending timer, cached result. An already-started run cannot be
// cancelled; its late result is discarded by the store.
func (t *Tracker) HandleRemoved(tabID string) {
	t.sched.Cancel(tabID)
	t.states.Remove(tabID)
	if err := t.results.Remove(tabID); err != nil {
		slog.Warn("failed to purge result for closed tab", "tab_id", tabID, "error", err)
	}

	t.mu.Lock()
	if t.active == tabID {
		t.active = ""
	}
	delete(t.inflight, tabID)
	t.mu.Unlock()

	slog.Info("tab removed", "tab_id", tabID)
}

// ActiveTabID returns the most recently changed tab, used as the default
// for unparameterized queries.
func (t *Tracker) ActiveTabID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// fire runs when a tab's debounce window closes. At most one run per tab
// is in flight; a window closing mid-run queues a single follow-up.
func (t *Tracker) fire(tabID string) {
	t.mu.Lock()
	if fl, ok := t.inflight[tabID]; ok {
		fl.queued = true
		t.mu.Unlock()
		return
	}
	t.inflight[tabID] = &flight{}
	t.mu.Unlock()

	go t.runLoop(tabID)
}

func (t *Tracker) runLoop(tabID string) {
	for {
		st, ok := t.states.Snapshot(tabID)
		if !ok {
			// Tab closed while the run was pending.
			t.mu.Lock()
			delete(t.inflight, tabID)
			t.mu.Unlock()
			return
		}

		snap := types.TabSnapshot{TabID: tabID, Title: st.LastSeenTitle, URL: st.LastSeenURL}
		if t.runner.Run(t.ctx, snap) {
			t.states.MarkProcessed(tabID, snap.Title)
		}

		t.mu.Lock()
		fl := t.inflight[tabID]
		if fl != nil && fl.queued {
			fl.queued = false
			t.mu.Unlock()
			continue
		}
		delete(t.inflight, tabID)
		t.mu.Unlock()
		return
	}
}

// Close stops the debounce scheduler. In-flight runs finish on their own.
func (t *Tracker) Close() {
	t.sched.Stop()
}
