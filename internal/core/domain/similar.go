package domain

import (
	"sort"
	"strings"
)

const (
	similarityThreshold = 0.3
	substringBoost      = 0.3
	maxSuggestions      = 5
)

// SuggestSimilar returns up to five candidate names ranked by similarity
// to the query. Candidates containing the query (or vice versa) get a
// boost, and anything below the threshold is dropped.
func SuggestSimilar(query string, candidates []string) []string {
	q := strings.ToLower(query)
	type scored struct {
		name  string
		score float64
	}
	var matches []scored
	for _, name := range candidates {
		c := strings.ToLower(name)
		score := similarity(q, c)
		if strings.Contains(c, q) || strings.Contains(q, c) {
			score += substringBoost
		}
		if score > similarityThreshold {
			matches = append(matches, scored{name, score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

// similarity is 2*LCS(a,b) / (len(a)+len(b)), the classic sequence ratio.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}
