package ui

import (
	"sort"
	"strings"
)

// Fuzzy matching defaults
const (
	DefaultMaxDistance    = 3
	DefaultMaxSuggestions = 3
)

// FuzzyOptions tunes FindSimilar. Zero fields take the defaults; matching
// ignores case unless CaseSensitive is set.
type FuzzyOptions struct {
	MaxDistance    int
	MaxSuggestions int
	CaseSensitive  bool
}

// FindSimilar returns the candidates within edit distance of target,
// closest first and alphabetically among equals.
//
//	FindSimilar("houshold", []string{"household", "people"}, nil) // ["household"]
func FindSimilar(target string, candidates []string, opts *FuzzyOptions) []string {
	var o FuzzyOptions
	if opts != nil {
		o = *opts
	}
	if o.MaxDistance == 0 {
		o.MaxDistance = DefaultMaxDistance
	}
	if o.MaxSuggestions == 0 {
		o.MaxSuggestions = DefaultMaxSuggestions
	}

	fold := func(s string) string {
		if o.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}

	type match struct {
		value    string
		distance int
	}
	var matches []match
	for _, c := range candidates {
		if d := Distance(fold(target), fold(c)); d <= o.MaxDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].value < matches[j].value
	})

	out := make([]string, 0, min(len(matches), o.MaxSuggestions))
	for _, m := range matches[:min(len(matches), o.MaxSuggestions)] {
		out = append(out, m.value)
	}
	return out
}

// Distance is the Levenshtein distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
