package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tabsense/tabsense/internal/types"
)

type fakeRunner struct {
	mu      sync.Mutex
	runs    []types.TabSnapshot
	started chan struct{}
	release chan struct{}
	accept  bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{accept: true}
}

func (r *fakeRunner) Run(ctx context.Context, snap types.TabSnapshot) bool {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.runs = append(r.runs, snap)
	r.mu.Unlock()
	return r.accept
}

func (r *fakeRunner) snapshots() []types.TabSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.TabSnapshot, len(r.runs))
	copy(out, r.runs)
	return out
}

type fakePurger struct {
	mu      sync.Mutex
	removed []string
}

func (p *fakePurger) Remove(tabID string) error {
	p.mu.Lock()
	p.removed = append(p.removed, tabID)
	p.mu.Unlock()
	return nil
}

func newTestTracker(runner Runner, purger ResultPurger, debounce time.Duration) *Tracker {
	detector := NewDetector(DefaultQuietInterval, DefaultBurstWindow, DefaultBurstThreshold)
	return New(context.Background(), detector, NewStateStore(), NewScheduler(debounce), runner, purger)
}

func waitForRuns(t *testing.T, runner *fakeRunner, want int) []types.TabSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snaps := runner.snapshots(); len(snaps) >= want {
			return snaps
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d runs; got %d", want, len(runner.snapshots()))
	return nil
}

func TestRapidEventsCoalesceIntoOneRunWithLastSnapshot(t *testing.T) {
	runner := newFakeRunner()
	trk := newTestTracker(runner, &fakePurger{}, 80*time.Millisecond)
	defer trk.Close()

	base := time.Now()
	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "A", NewURL: "https://a.example/", Phase: types.PhaseComplete, ObservedAt: base,
	})
	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "B", Phase: types.PhaseComplete, ObservedAt: base.Add(50 * time.Millisecond),
	})

	waitForRuns(t, runner, 1)
	time.Sleep(200 * time.Millisecond)

	snaps := runner.snapshots()
	if len(snaps) != 1 {
		t.Fatalf("runs = %d; want exactly 1", len(snaps))
	}
	if got, want := snaps[0].Title, "B"; got != want {
		t.Fatalf("run title = %q; want %q", got, want)
	}
	if got, want := snaps[0].URL, "https://a.example/"; got != want {
		t.Fatalf("run url = %q; want %q", got, want)
	}
}

func TestRepeatedTitleOnlyQualifiesOnce(t *testing.T) {
	runner := newFakeRunner()
	trk := newTestTracker(runner, &fakePurger{}, 20*time.Millisecond)
	defer trk.Close()

	base := time.Now()
	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "Same", NewURL: "https://a.example/", Phase: types.PhaseComplete, ObservedAt: base,
	})
	waitForRuns(t, runner, 1)

	// Same title repeated with complete phase: lastProcessedTitle now
	// matches, so nothing requalifies.
	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "Same", Phase: types.PhaseComplete, ObservedAt: base.Add(300 * time.Millisecond),
	})
	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "Same", Phase: types.PhaseComplete, ObservedAt: base.Add(600 * time.Millisecond),
	})

	time.Sleep(150 * time.Millisecond)
	if got := len(runner.snapshots()); got != 1 {
		t.Fatalf("runs = %d; want exactly 1", got)
	}
}

func TestHandleRemovedPurgesEverything(t *testing.T) {
	runner := newFakeRunner()
	purger := &fakePurger{}
	trk := newTestTracker(runner, purger, 50*time.Millisecond)
	defer trk.Close()

	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "Page", NewURL: "https://a.example/", ObservedAt: time.Now(),
	})
	trk.HandleRemoved("t1")

	time.Sleep(150 * time.Millisecond)
	if got := len(runner.snapshots()); got != 0 {
		t.Fatalf("runs after removal = %d; want 0", got)
	}

	purger.mu.Lock()
	defer purger.mu.Unlock()
	if len(purger.removed) != 1 || purger.removed[0] != "t1" {
		t.Fatalf("purged = %v; want [t1]", purger.removed)
	}
}

func TestQualifyingEventDuringRunQueuesOneFollowUp(t *testing.T) {
	runner := newFakeRunner()
	runner.started = make(chan struct{}, 2)
	runner.release = make(chan struct{})
	trk := newTestTracker(runner, &fakePurger{}, 10*time.Millisecond)
	defer trk.Close()

	base := time.Now()
	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "First", NewURL: "https://a.example/", ObservedAt: base,
	})
	<-runner.started

	// Run is in flight; a newer qualifying event must not be lost.
	trk.HandleEvent(types.TabChangeEvent{
		TabID: "t1", NewTitle: "Second", ObservedAt: base.Add(20 * time.Millisecond),
	})
	time.Sleep(50 * time.Millisecond)

	runner.release <- struct{}{}
	<-runner.started
	runner.release <- struct{}{}

	snaps := waitForRuns(t, runner, 2)
	if got, want := snaps[1].Title, "Second"; got != want {
		t.Fatalf("follow-up title = %q; want %q", got, want)
	}
}

func TestActiveTabFollowsLatestEvent(t *testing.T) {
	runner := newFakeRunner()
	trk := newTestTracker(runner, &fakePurger{}, 10*time.Millisecond)
	defer trk.Close()

	trk.HandleEvent(types.TabChangeEvent{TabID: "t1", NewURL: "https://a.example/", ObservedAt: time.Now()})
	trk.HandleEvent(types.TabChangeEvent{TabID: "t2", NewURL: "https://b.example/", ObservedAt: time.Now()})

	if got, want := trk.ActiveTabID(), "t2"; got != want {
		t.Fatalf("ActiveTabID() = %q; want %q", got, want)
	}

	trk.HandleRemoved("t2")
	if got, want := trk.ActiveTabID(), ""; got != want {
		t.Fatalf("ActiveTabID() after removal = %q; want %q", got, want)
	}
}
