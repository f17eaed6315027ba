package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClassifySendsPromptAndParsesResponse(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"category":        "Finance",
			"confidenceScore": 0.82,
			"explanationText": "This text involves financial services.",
		})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, srv.Client())
	cls, err := c.Classify(context.Background(), "stocks and trading")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if got, want := gotBody, `{"prompt":"stocks and trading"}`; strings.TrimSpace(got) != want {
		t.Fatalf("request body = %q; want %q", got, want)
	}
	if got, want := cls.Category, "Finance"; got != want {
		t.Fatalf("Category = %q; want %q", got, want)
	}
	if got, want := cls.ConfidenceScore, 0.82; got != want {
		t.Fatalf("ConfidenceScore = %v; want %v", got, want)
	}
	if cls.ExplanationText == "" {
		t.Fatal("ExplanationText empty")
	}
}

func TestClassifyAcceptsLegacyResponseShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"category":"News","confidence":"High","explanation":"This text involves news articles or updates."}`)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, srv.Client())
	cls, err := c.Classify(context.Background(), "breaking news")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got, want := cls.Category, "News"; got != want {
		t.Fatalf("Category = %q; want %q", got, want)
	}
	if got, want := cls.ConfidenceScore, 0.9; got != want {
		t.Fatalf("ConfidenceScore = %v; want %v", got, want)
	}
	if got, want := cls.ExplanationText, "This text involves news articles or updates."; got != want {
		t.Fatalf("ExplanationText = %q; want %q", got, want)
	}
}

func TestClassifyRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model blew up", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, srv.Client())
	_, err := c.Classify(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "status=500") {
		t.Fatalf("error = %q; want to contain %q", err, "status=500")
	}
}

func TestClassifyRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, srv.Client())
	if _, err := c.Classify(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestClassifyRejectsMissingCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"confidenceScore":0.5}`)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, srv.Client())
	if _, err := c.Classify(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for response without category")
	}
}

func TestLegacyConfidenceMapping(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`"High"`, 0.9},
		{`"Medium"`, 0.6},
		{`"Low"`, 0.3},
		{`0.45`, 0.45},
		{`7`, 1},
	}
	for _, tt := range tests {
		got, err := legacyConfidence(json.RawMessage(tt.raw))
		if err != nil {
			t.Fatalf("legacyConfidence(%s) error = %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("legacyConfidence(%s) = %v; want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := legacyConfidence(json.RawMessage(`"Sideways"`)); err == nil {
		t.Fatal("expected error for unknown confidence label")
	}
}
