package kb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var supportKB = []Entry{
	{Question: "How do I reset my password?", Answer: "Use the reset link."},
	{Question: "How do I change my email?", Answer: "Open account settings."},
	{Question: "Where is my   PASSWORD stored?", Answer: "Hashed in the vault."},
	{Question: "", Answer: "orphan answer"},
	{Question: "What plans exist?", Answer: ""},
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Match
	}{
		{"best overlap wins", "reset password", Match{Answer: "Use the reset link.", Score: 2, Index: 0}},
		{"tie keeps earliest", "password", Match{Answer: "Use the reset link.", Score: 1, Index: 0}},
		{"later entry with higher score", "where password stored", Match{Answer: "Hashed in the vault.", Score: 3, Index: 2}},
		{"whitespace and case normalized", "  EMAIL\tchange ", Match{Answer: "Open account settings.", Score: 2, Index: 1}},
		{"repeated tokens count twice", "email email", Match{Answer: "Open account settings.", Score: 2, Index: 1}},
		{"no overlap", "billing", Match{Index: -1}},
		{"empty query", "", Match{Index: -1}},
		{"incomplete entries skipped", "plans orphan", Match{Index: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup(supportKB, tt.query))
		})
	}
}

func TestLookup_Substring(t *testing.T) {
	entries := []Entry{{Question: "Refunds and returns", Answer: "30 days."}}
	got := Lookup(entries, "return")
	assert.Equal(t, 1, got.Score)
}

func TestParse(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		entries, err := Parse([]byte(`[{"question": "q1", "answer": "a1"}, "skip me", 3, {"question": 7, "answer": "a2"}]`))
		require.NoError(t, err)
		assert.Equal(t, []Entry{{Question: "q1", Answer: "a1"}, {Question: "7", Answer: "a2"}}, entries)
	})

	t.Run("scalar fields", func(t *testing.T) {
		entries, err := Parse([]byte(`[
			{"question": 42, "answer": 1.5},
			{"question": 1234567, "answer": "big"},
			{"question": true, "answer": "yes"},
			{"question": null, "answer": 0},
			{"question": false, "answer": ["list"]},
			{"question": {"nested": 1}, "answer": 1e21}
		]`))
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Question: "42", Answer: "1.5"},
			{Question: "1234567", Answer: "big"},
			{Question: "True", Answer: "yes"},
			{},
			{},
			{Answer: "1e+21"},
		}, entries)
	})

	t.Run("numeric question is a candidate", func(t *testing.T) {
		entries, err := Parse([]byte(`[{"question": 42, "answer": "The answer."}]`))
		require.NoError(t, err)
		got := Lookup(entries, "42")
		assert.Equal(t, Match{Answer: "The answer.", Score: 1, Index: 0}, got)
	})

	t.Run("object is empty", func(t *testing.T) {
		entries, err := Parse([]byte(`{"question": "q"}`))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Parse([]byte(`[`))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"question": "How do I reset my password?", "answer": "Use the reset link."}]`), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Use the reset link.", Lookup(entries, "reset").Answer)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
