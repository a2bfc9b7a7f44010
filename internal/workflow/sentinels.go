package workflow

import (
	"regexp"
	"strings"

	"github.com/Iron-Ham/otto/internal/artifacts"
)

// okPattern matches <OK> alone on a line, trailing whitespace allowed.
var okPattern = regexp.MustCompile(`(?m)^<OK>\s*$`)

// HasOK reports whether text contains the completion sentinel.
func HasOK(text string) bool {
	return okPattern.MatchString(text)
}

// ExtractTag returns the trimmed body of the first <tag>...</tag> block.
func ExtractTag(text, tag string) (string, bool) {
	re := regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// decisionPattern builds the case-insensitive <DECISION> matcher for the
// allowed set.
func decisionPattern(allowed []artifacts.Decision) *regexp.Regexp {
	alts := make([]string, len(allowed))
	for i, d := range allowed {
		alts[i] = regexp.QuoteMeta(string(d))
	}
	return regexp.MustCompile(`(?i)<DECISION>\s*(` + strings.Join(alts, "|") + `)\s*</DECISION>`)
}

// ExtractDecision returns the first allowed decision tagged in text.
func ExtractDecision(text string, allowed []artifacts.Decision) (artifacts.Decision, bool) {
	if len(allowed) == 0 {
		return "", false
	}
	m := decisionPattern(allowed).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return artifacts.Decision(strings.ToLower(m[1])), true
}
