package similarity

import (
	"math"
	"reflect"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"help", "help", 0},
		{"whelp", "help", 1},
		{"hepl", "help", 2},
		{"kitten", "sitting", 3},
		{"abcd", "wxyz", 4},
		{"héllo", "hello", 1},
	}

	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"help", "help", 1.0},
		{"", "", 1.0},
		{"whelp", "help", 0.8},
		{"abcd", "wxyz", 0.0},
		{"ab", "", 0.0},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{{"weather", "wether"}, {"news", "new"}, {"crypto", "crpyto"}}
	for _, p := range pairs {
		if Similarity(p[0], p[1]) != Similarity(p[1], p[0]) {
			t.Errorf("Similarity not symmetric for %q/%q", p[0], p[1])
		}
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"history", "help", "weather", "news"}

	got := Suggest("whelp", candidates)
	if len(got) == 0 || got[0] != "help" {
		t.Fatalf("expected help first, got %v", got)
	}

	if got := Suggest("zzzzzz", candidates); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestSuggestThresholdIsExclusive(t *testing.T) {
	// "abcde" vs "abxyz": distance 3 over 5 -> 0.4; "abcdx" -> 0.8;
	// "abcxy" -> exactly 0.6 and must be excluded.
	got := Suggest("abcde", []string{"abxyz", "abcxy", "abcdx"})
	if !reflect.DeepEqual(got, []string{"abcdx"}) {
		t.Errorf("expected [abcdx], got %v", got)
	}
}

func TestSuggestCapAndTies(t *testing.T) {
	candidates := []string{"pinz", "pint", "ping", "pong", "pins"}

	got := Suggest("pink", candidates)
	if len(got) != MaxSuggestions {
		t.Fatalf("expected %d suggestions, got %v", MaxSuggestions, got)
	}
	// All four-letter one-edit candidates tie at 0.75; candidate order wins.
	if !reflect.DeepEqual(got, []string{"pinz", "pint", "ping"}) {
		t.Errorf("expected registration order for ties, got %v", got)
	}
}

func TestRank(t *testing.T) {
	matches := Rank("stat", []string{"stats", "status", "start"}, 0.5)
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %v", matches)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted: %v", matches)
		}
	}
}
