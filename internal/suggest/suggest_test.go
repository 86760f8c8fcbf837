package suggest

import (
	"strings"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"url", "url", 0},
		{"kitten", "sitting", 3},
		{"page-size", "pagesize", 1},
	}
	for _, tc := range tests {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilar(t *testing.T) {
	settings := []string{"url", "poll-interval", "page-size"}
	tests := []struct {
		unknown string
		want    []string
	}{
		{"pagesize", []string{"page-size"}},
		{"poll-intervall", []string{"poll-interval"}},
		{"URL", []string{"url"}},
		{"--nmae", []string{"--name"}},
		{"something-else", nil},
	}
	for _, tc := range tests {
		candidates := settings
		if strings.HasPrefix(tc.unknown, "--") {
			candidates = []string{"--name", "--time", "--json"}
		}
		got := Similar(tc.unknown, candidates)
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Errorf("Similar(%q) = %v, want %v", tc.unknown, got, tc.want)
		}
	}
}

func TestSimilarOrdersByDistance(t *testing.T) {
	got := Similar("tme", []string{"name", "time"})
	if len(got) != 2 || got[0] != "time" {
		t.Errorf("Similar = %v, want time first", got)
	}
}

func TestFlagHint(t *testing.T) {
	if got := FlagHint("--duration"); got != "--time" {
		t.Errorf("FlagHint(--duration) = %q", got)
	}
	if got := FlagHint("--Title"); got != "--name" {
		t.Errorf("FlagHint(--Title) = %q", got)
	}
	if got := FlagHint("--time"); got != "" {
		t.Errorf("FlagHint(--time) = %q, want empty", got)
	}
}

func TestDidYouMean(t *testing.T) {
	if got := DidYouMean(nil); got != "" {
		t.Errorf("DidYouMean(nil) = %q", got)
	}
	if got := DidYouMean([]string{"url", "page-size"}); got != "did you mean url or page-size?" {
		t.Errorf("DidYouMean = %q", got)
	}
}
