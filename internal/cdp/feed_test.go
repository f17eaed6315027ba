package cdp

import (
	"strings"
	"testing"

	"github.com/tabsense/tabsense/internal/config"
	"github.com/tabsense/tabsense/internal/types"
)

type nopSink struct{}

func (nopSink) HandleEvent(types.TabChangeEvent) {}
func (nopSink) HandleRemoved(string)             {}

func TestMatchesTabURL(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		url    string
		want   bool
	}{
		{name: "http page no filter", filter: "", url: "http://example.com/", want: true},
		{name: "https page no filter", filter: "", url: "https://example.com/", want: true},
		{name: "devtools page rejected", filter: "", url: "devtools://devtools/bundled/inspector.html", want: false},
		{name: "chrome internal rejected", filter: "", url: "chrome://newtab/", want: false},
		{name: "blank page rejected", filter: "", url: "about:blank", want: false},
		{name: "filter match", filter: "example.com", url: "https://example.com/page", want: true},
		{name: "filter match case insensitive", filter: "Example.COM", url: "https://www.example.com/", want: true},
		{name: "filter mismatch", filter: "example.com", url: "https://other.net/", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFeed(&config.Config{TabURLFilter: tt.filter}, nopSink{})
			if got := f.matchesTabURL(tt.url); got != tt.want {
				t.Fatalf("matchesTabURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestTruncateURL(t *testing.T) {
	short := "https://example.com/"
	if got := truncateURL(short); got != short {
		t.Fatalf("truncateURL(short) = %q, want unchanged", got)
	}

	long := "https://example.com/" + strings.Repeat("x", 200)
	got := truncateURL(long)
	if len(got) != 123 {
		t.Fatalf("len(truncateURL(long)) = %d, want 123", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncateURL(long) = %q, want ... suffix", got)
	}
}
