package cli

import (
	"strings"
)

const maxSuggestions = 3

// closeMatches returns up to three names sharing a prefix with query, or
// containing it when no prefix matches. Matching ignores case and a
// trailing .json.
func closeMatches(query string, names []string) []string {
	q := strings.ToLower(strings.TrimSuffix(query, ".json"))
	if q == "" {
		return nil
	}

	var matches []string
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), q) {
			matches = append(matches, n)
		}
	}
	if len(matches) == 0 {
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), q) {
				matches = append(matches, n)
			}
		}
	}
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	return matches
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
