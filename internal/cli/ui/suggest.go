package ui

import (
	"sort"
	"strings"
)

// Suggest returns up to limit candidates within maxDistance edits of target,
// closest first. Matching ignores case.
func Suggest(target string, candidates []string, maxDistance, limit int) []string {
	type scored struct {
		value    string
		distance int
	}

	target = strings.ToLower(target)
	var matches []scored
	for _, c := range candidates {
		if d := editDistance(target, strings.ToLower(c)); d <= maxDistance {
			matches = append(matches, scored{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	out := make([]string, 0, min(limit, len(matches)))
	for i := 0; i < len(matches) && i < limit; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// editDistance is the Levenshtein distance over bytes, using two rows
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
