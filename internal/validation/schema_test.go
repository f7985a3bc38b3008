package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const validGoldenJSON = `{
  "cases": [
    {
      "id": "sourced-1",
      "question": "How are citations produced?",
      "expect_no_source": false,
      "expected_citations": [{"source_contains": "sample", "page": 1}],
      "expected_answer_themes": ["citations"]
    },
    {
      "id": "no-source-1",
      "question": "What is the airspeed of a swallow?",
      "expect_no_source": true,
      "expected_citations": [{"source_contains": null, "page": null}]
    }
  ]
}`

const invalidGoldenJSON = `{
  "cases": [
    {"question": "missing id"},
    {"id": "bad-page", "question": "q", "expected_citations": [{"page": 1.5}]}
  ]
}`

const validReportJSON = `{
  "cases": [],
  "deterministic_replay_ok": true,
  "failures": {"regression": [], "threshold": []},
  "metrics": {"citation_coverage": 1.0, "helpfulness": 0.75},
  "offline": true,
  "thresholds": {"helpfulness_min": 0.67},
  "version": 1
}`

func TestValidateGoldenBytes_Valid(t *testing.T) {
	errs := ValidateGoldenBytes([]byte(validGoldenJSON))
	require.Empty(t, errs, "valid golden dataset should have no errors")
}

func TestValidateGoldenBytes_Invalid(t *testing.T) {
	errs := ValidateGoldenBytes([]byte(invalidGoldenJSON))
	require.NotEmpty(t, errs)

	joined := strings.Join(errs, "\n")
	require.Contains(t, joined, "/cases/0")
	require.Contains(t, joined, "/cases/1/expected_citations/0/page")
}

func TestValidateGoldenBytes_MissingCases(t *testing.T) {
	errs := ValidateGoldenBytes([]byte(`{}`))
	require.NotEmpty(t, errs)
}

func TestValidateGoldenBytes_Malformed(t *testing.T) {
	errs := ValidateGoldenBytes([]byte(`{"cases": [`))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "JSON parse error")
}

func TestValidateReportBytes(t *testing.T) {
	require.Empty(t, ValidateReportBytes([]byte(validReportJSON)))

	errs := ValidateReportBytes([]byte(`{"version": 2, "metrics": {"helpfulness": 1.5}}`))
	require.NotEmpty(t, errs)
}

func TestValidateReportFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(p, []byte(validReportJSON), 0o644))

	errs, err := ValidateReportFile(p)
	require.NoError(t, err)
	require.Empty(t, errs)

	_, err = ValidateReportFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
