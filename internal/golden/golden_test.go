package golden

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "golden.json", `{
  "cases": [
    {"id": "b-sourced", "question": "How are citations shown?", "expected_answer_themes": ["citations"],
     "expected_citations": [{"source_contains": "Sample", "page": 2}]},
    {"id": "a-nosrc", "question": "Who won the 1930 cup?", "expect_no_source": true}
  ]
}`)

	ds, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ds.Cases, 2)

	c := ds.Cases[0]
	assert.Equal(t, "b-sourced", c.ID)
	require.Len(t, c.ExpectedCitations, 1)
	assert.Equal(t, "Sample", c.ExpectedCitations[0].SourceContains)
	require.NotNil(t, c.ExpectedCitations[0].Page)
	assert.Equal(t, 2, *c.ExpectedCitations[0].Page)

	sorted := ds.Sorted()
	assert.Equal(t, "a-nosrc", sorted[0].ID)
	assert.Equal(t, "b-sourced", sorted[1].ID)
	// Sorting must not reorder the loaded dataset.
	assert.Equal(t, "b-sourced", ds.Cases[0].ID)
}

func TestLoad_NullConstraintFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "golden.json",
		`{"cases": [{"id": "x", "question": "q", "expected_citations": [{"source_contains": null, "page": null}]}]}`)

	ds, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ds.Cases[0].ExpectedCitations, 1)
	assert.Equal(t, "", ds.Cases[0].ExpectedCitations[0].SourceContains)
	assert.Nil(t, ds.Cases[0].ExpectedCitations[0].Page)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(dir + "/nope.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "golden: read")
	})

	t.Run("schema violation", func(t *testing.T) {
		path := writeFile(t, dir, "bad.json", `{"cases": [{"question": "no id"}]}`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match schema")
	})

	t.Run("duplicate ids", func(t *testing.T) {
		path := writeFile(t, dir, "dup.json", `{"cases": [{"id": "a", "question": "q1"}, {"id": "a", "question": "q2"}]}`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate case id "a"`)
	})
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "golden.CSV", "id,question\nz,last\na,first\n")

	ds, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ds.Cases, 2)
	assert.Equal(t, "a", ds.Sorted()[0].ID)
}
