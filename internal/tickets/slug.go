package tickets

import (
	"regexp"
	"strings"
)

const (
	minSlugWords = 3
	maxSlugWords = 5
)

var (
	slugWordRegex      = regexp.MustCompile(`[\p{L}\p{N}]+`)
	slugSeparatorRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// CountSlugWords counts runs of letters and digits in slug.
func CountSlugWords(slug string) int {
	return len(slugWordRegex.FindAllString(slug, -1))
}

// ValidSlugWordCount reports whether slug has between three and five words.
func ValidSlugWordCount(slug string) bool {
	n := CountSlugWords(slug)
	return n >= minSlugWords && n <= maxSlugWords
}

// NormalizeSlug lowercases slug and collapses everything outside [a-z0-9]
// into single hyphens. The result may be empty.
func NormalizeSlug(slug string) string {
	s := slugSeparatorRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(slug)), "-")
	return strings.Trim(s, "-")
}
