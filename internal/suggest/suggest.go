// Package suggest offers "did you mean" candidates for mistyped flags and
// setting names using Levenshtein distance.
package suggest

import (
	"sort"
	"strings"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// Similar returns up to three candidates close to unknown, best first.
// Leading dashes are ignored on both sides.
func Similar(unknown string, candidates []string) []string {
	unknown = strings.ToLower(strings.TrimLeft(unknown, "-"))

	type scored struct {
		value string
		score int
	}
	var matches []scored
	maxDist := max(2, len(unknown)/2)
	for _, c := range candidates {
		dist := levenshtein(unknown, strings.ToLower(strings.TrimLeft(c, "-")))
		if dist <= maxDist {
			matches = append(matches, scored{c, dist})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	var result []string
	for i := 0; i < len(matches) && i < 3; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// flagAliases maps flags people reach for to the ones worklog has.
var flagAliases = map[string]string{
	"duration": "--time",
	"minutes":  "--time",
	"hours":    "--time",
	"title":    "--name",
	"desc":     "--name",
	"user":     "--email",
	"password": "--password-stdin",
	"file":     "--batch @path",
	"url":      "--server",
	"filter":   "--match, -m",
	"grep":     "--match, -m",
}

// FlagHint returns a hint for a commonly misused flag, or "".
func FlagHint(flag string) string {
	return flagAliases[strings.ToLower(strings.TrimLeft(flag, "-"))]
}

// DidYouMean formats candidates as a trailing hint, or "" when there are none.
func DidYouMean(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return "did you mean " + strings.Join(candidates, " or ") + "?"
}
