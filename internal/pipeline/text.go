package pipeline

import (
	"regexp"
	"strings"
)

// MaxKeywords caps how many query tokens Keywords returns.
const MaxKeywords = 24

var (
	punctRE = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	spaceRE = regexp.MustCompile(`\s+`)
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "how": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "with": true,
}

// Normalize lower-cases s, replaces every non-alphanumeric character with a
// space and collapses runs of whitespace.
func Normalize(s string) string {
	lowered := strings.ToLower(s)
	noPunct := punctRE.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(spaceRE.ReplaceAllString(noPunct, " "))
}

// Keywords returns the distinct non-stopword tokens of the normalized query in
// first-seen order, at most MaxKeywords of them.
func Keywords(query string) []string {
	normalized := Normalize(query)
	if normalized == "" {
		return []string{}
	}

	seen := make(map[string]bool)
	ordered := make([]string, 0, MaxKeywords)
	for _, token := range strings.Split(normalized, " ") {
		if token == "" || stopwords[token] || seen[token] {
			continue
		}
		seen[token] = true
		ordered = append(ordered, token)
		if len(ordered) >= MaxKeywords {
			break
		}
	}
	return ordered
}
