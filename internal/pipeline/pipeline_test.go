package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tabsense/tabsense/internal/types"
)

type fakeSummarizer struct {
	text string
	err  error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, title string) (string, error) {
	return f.text, f.err
}

type fakeClassifier struct {
	cls      Classification
	err      error
	lastText string
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	f.lastText = text
	return f.cls, f.err
}

type recordingStore struct {
	mu   sync.Mutex
	puts map[string]types.EnrichmentResult
}

func newRecordingStore() *recordingStore {
	return &recordingStore{puts: make(map[string]types.EnrichmentResult)}
}

func (s *recordingStore) Put(tabID string, res types.EnrichmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[tabID] = res
	return nil
}

type recordingBus struct {
	mu        sync.Mutex
	broadcast []types.EnrichmentResult
}

func (b *recordingBus) Broadcast(tabID string, res types.EnrichmentResult) {
	b.mu.Lock()
	b.broadcast = append(b.broadcast, res)
	b.mu.Unlock()
}

func newTestPipeline(s Summarizer, c Classifier, store *recordingStore, b *recordingBus) *Pipeline {
	p := New(s, c, store, b, time.Second)
	p.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestRunSkipsShortTitles(t *testing.T) {
	store := newRecordingStore()
	b := &recordingBus{}
	p := newTestPipeline(&fakeSummarizer{text: "stuff"}, &fakeClassifier{}, store, b)

	for _, title := range []string{"", " ", "x", "  x  "} {
		if p.Run(context.Background(), types.TabSnapshot{TabID: "t1", Title: title}) {
			t.Fatalf("Run() accepted disqualified title %q", title)
		}
	}

	if len(store.puts) != 0 || len(b.broadcast) != 0 {
		t.Fatal("disqualified input produced a result or notification")
	}
}

func TestRunSuccessStoresAndBroadcasts(t *testing.T) {
	store := newRecordingStore()
	b := &recordingBus{}
	classifier := &fakeClassifier{cls: Classification{
		Category:        "News",
		ConfidenceScore: 0.9,
		ExplanationText: "This text involves news articles or updates.",
	}}
	p := newTestPipeline(&fakeSummarizer{text: "• Breaking news (today!)"}, classifier, store, b)

	snap := types.TabSnapshot{TabID: "t1", Title: "Latest headlines", URL: "https://news.example/"}
	if !p.Run(context.Background(), snap) {
		t.Fatal("Run() rejected a qualifying snapshot")
	}

	res, ok := store.puts["t1"]
	if !ok {
		t.Fatal("result was not stored")
	}
	if got, want := res.Category, "News"; got != want {
		t.Fatalf("Category = %q; want %q", got, want)
	}
	if got, want := res.Title, "Latest headlines"; got != want {
		t.Fatalf("Title = %q; want %q", got, want)
	}
	if res.ProducedAt.IsZero() {
		t.Fatal("ProducedAt not set")
	}

	// The classifier must only ever see sanitized text.
	if got, want := classifier.lastText, "Breaking news today"; got != want {
		t.Fatalf("classifier input = %q; want %q", got, want)
	}

	if len(b.broadcast) != 1 {
		t.Fatalf("broadcasts = %d; want 1", len(b.broadcast))
	}
}

func TestRunSummarizerFailureYieldsErrorResult(t *testing.T) {
	store := newRecordingStore()
	b := &recordingBus{}
	p := newTestPipeline(&fakeSummarizer{err: errors.New("model unreachable")}, &fakeClassifier{}, store, b)

	if !p.Run(context.Background(), types.TabSnapshot{TabID: "t1", Title: "Some page"}) {
		t.Fatal("Run() rejected a qualifying snapshot")
	}

	res := store.puts["t1"]
	if got, want := res.Category, types.CategoryError; got != want {
		t.Fatalf("Category = %q; want %q", got, want)
	}
	if res.ConfidenceScore != 0 {
		t.Fatalf("ConfidenceScore = %v; want 0", res.ConfidenceScore)
	}
	if res.ExplanationText == "" {
		t.Fatal("ExplanationText empty; want failure reason")
	}
	if len(b.broadcast) != 1 {
		t.Fatalf("broadcasts = %d; want 1 (failures are still announced)", len(b.broadcast))
	}
}

func TestRunClassifierFailureYieldsErrorResult(t *testing.T) {
	store := newRecordingStore()
	b := &recordingBus{}
	p := newTestPipeline(&fakeSummarizer{text: "summary"}, &fakeClassifier{err: errors.New("classifier: status=500")}, store, b)

	if !p.Run(context.Background(), types.TabSnapshot{TabID: "t1", Title: "Some page"}) {
		t.Fatal("Run() rejected a qualifying snapshot")
	}

	res := store.puts["t1"]
	if got, want := res.Category, types.CategoryError; got != want {
		t.Fatalf("Category = %q; want %q", got, want)
	}
	if res.ExplanationText == "" {
		t.Fatal("ExplanationText empty; want failure reason")
	}
}
