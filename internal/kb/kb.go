// Package kb answers support questions from a small JSON knowledge base by
// keyword overlap.
package kb

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Entry is one question/answer pair.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Load reads a knowledge base file: a JSON array of entries. A document whose
// top level is not an array yields no entries; array elements that are not
// objects are skipped.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge base %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes knowledge base JSON. See Load.
func Parse(data []byte) ([]Entry, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing knowledge base: %w", err)
	}
	items, ok := doc.([]any)
	if !ok {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Question: stringField(obj, "question"),
			Answer:   stringField(obj, "answer"),
		})
	}
	return entries, nil
}

// Match is the outcome of a lookup. Index is -1 when nothing matched.
type Match struct {
	Answer string `json:"answer"`
	Score  int    `json:"score"`
	Index  int    `json:"index"`
}

// Lookup returns the entry whose question shares the most query tokens.
// Entries missing a question or answer are skipped. Ties keep the earliest
// entry, and a best score of zero means no answer.
func Lookup(entries []Entry, query string) Match {
	tokens := strings.Fields(strings.ToLower(query))

	best := Match{Index: -1}
	for i, e := range entries {
		if e.Question == "" || e.Answer == "" {
			continue
		}
		score := overlap(e.Question, tokens)
		if score > best.Score {
			best = Match{Answer: e.Answer, Score: score, Index: i}
		}
	}
	return best
}

// overlap counts query tokens, repeats included, that occur as substrings of
// the whitespace-normalized, lower-cased question.
func overlap(question string, tokens []string) int {
	haystack := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	score := 0
	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			score++
		}
	}
	return score
}

// stringField renders obj[key] as text. Scalars are stringified the way the
// knowledge base tooling always has (42 is "42", true is "True"); null, false,
// zero and containers count as absent.
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "True"
		}
	}
	return ""
}
