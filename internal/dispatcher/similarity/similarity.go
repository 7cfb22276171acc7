// Package similarity scores how close two command names are and proposes
// corrections for mistyped commands.
package similarity

import "sort"

// Suggestion policy.
const (
	// Threshold is the exclusive lower bound a candidate must beat.
	Threshold = 0.6

	// MaxSuggestions caps the number of returned suggestions.
	MaxSuggestions = 3
)

// Distance returns the Levenshtein edit distance between a and b, computed
// over runes with a full (len(a)+1) x (len(b)+1) table.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	rows, cols := len(ra)+1, len(rb)+1

	table := make([][]int, rows)
	for i := range table {
		table[i] = make([]int, cols)
		table[i][0] = i
	}
	for j := 0; j < cols; j++ {
		table[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			table[i][j] = min(
				table[i-1][j]+1,      // deletion
				table[i][j-1]+1,      // insertion
				table[i-1][j-1]+cost, // substitution
			)
		}
	}

	return table[rows-1][cols-1]
}

// Similarity returns 1 - Distance(a, b)/max(len(a), len(b)), in [0, 1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(a, b))/float64(longest)
}

// Match is a scored candidate.
type Match struct {
	Name  string
	Score float64
}

// Rank scores every candidate against input and returns those strictly above
// threshold, best first. Equal scores keep candidate order.
func Rank(input string, candidates []string, threshold float64) []Match {
	var matches []Match
	for _, c := range candidates {
		if score := Similarity(input, c); score > threshold {
			matches = append(matches, Match{Name: c, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Suggest returns up to MaxSuggestions candidate names whose similarity to
// input exceeds Threshold, ordered by descending similarity.
func Suggest(input string, candidates []string) []string {
	return SuggestN(input, candidates, Threshold, MaxSuggestions)
}

// SuggestN is Suggest with an explicit threshold and cap.
func SuggestN(input string, candidates []string, threshold float64, limit int) []string {
	matches := Rank(input, candidates, threshold)
	if limit >= 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}
	return names
}
