package reporting

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/namel3ss/evalgate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCase(id string) models.CaseResult {
	return models.CaseResult{
		AnswerMode:                    models.ModeCitationsOnly,
		AnswerText:                    "Citations-only mode is active.",
		CitationCorrectness:           true,
		CitationCoverage:              true,
		Citations:                     []string{"doc-a:1"},
		ExpectedCitationConstraintsOK: true,
		ID:                            id,
		NoSourceBehaviorOK:            true,
		Question:                      "What is " + id + "?",
		SelectedCandidateIDs:          []string{"doc-a:1"},
		ThemeScore:                    1,
	}
}

func newTestReport() *models.Report {
	stray := passingCase("case-2")
	stray.Citations = []string{"doc-a:1", "doc-z:9"}
	stray.CitationCorrectness = false

	return &models.Report{
		Cases:                 []models.CaseResult{passingCase("case-1"), stray, passingCase("case-3")},
		DeterministicReplayOK: true,
		Failures: models.Failures{
			Regression: []string{"metric helpfulness regressed from 0.9000 to 0.7000 (allowed drop 0.1000)"},
			Threshold:  []string{"citation_correctness below threshold"},
		},
		Metrics: models.Metrics{
			models.MetricCitationCoverage:            1,
			models.MetricCitationCorrectness:         0.6667,
			models.MetricExpectedCitationConstraints: 1,
			models.MetricHelpfulness:                 0.7,
			models.MetricNoSourceBehavior:            1,
			models.MetricDeterministicReplay:         1,
		},
		Offline:    true,
		Thresholds: models.DefaultThresholds(),
		Version:    models.ReportVersion,
	}
}

func TestConvertToJUnit_Structure(t *testing.T) {
	suites := ConvertToJUnit(newTestReport())

	require.Len(t, suites.TestSuites, 2)
	cases, gates := suites.TestSuites[0], suites.TestSuites[1]

	assert.Equal(t, "cases", cases.Name)
	assert.Equal(t, 3, cases.Tests)
	assert.Equal(t, 1, cases.Failures)

	assert.Equal(t, "gates", gates.Name)
	assert.Equal(t, 7, gates.Tests, "six thresholds plus regression")
	assert.Equal(t, 2, gates.Failures)

	assert.Equal(t, 10, suites.Tests)
	assert.Equal(t, 3, suites.Failures)
}

func TestConvertToJUnit_CaseFailure(t *testing.T) {
	suites := ConvertToJUnit(newTestReport())
	tcs := suites.TestSuites[0].TestCases

	assert.Nil(t, tcs[0].Failure)
	require.NotNil(t, tcs[1].Failure)
	assert.Equal(t, "case-2", tcs[1].Name)
	assert.Equal(t, "CaseFailure", tcs[1].Failure.Type)
	assert.Equal(t, "case-2: citation_correctness", tcs[1].Failure.Message)
	assert.Contains(t, tcs[1].Failure.Body, "doc-z:9")
}

func TestConvertToJUnit_Gates(t *testing.T) {
	suites := ConvertToJUnit(newTestReport())
	tcs := suites.TestSuites[1].TestCases

	assert.Equal(t, "threshold/citation_coverage", tcs[0].Name)
	assert.Nil(t, tcs[0].Failure)

	require.NotNil(t, tcs[1].Failure)
	assert.Equal(t, "citation_correctness below threshold", tcs[1].Failure.Message)
	assert.Equal(t, "value 0.6667, minimum 1.0000", tcs[1].Failure.Body)

	assert.Nil(t, tcs[3].Failure, "helpfulness 0.70 clears 0.67")

	last := tcs[len(tcs)-1]
	assert.Equal(t, "regression", last.Name)
	require.NotNil(t, last.Failure)
	assert.Equal(t, "RegressionFailure", last.Failure.Type)
	assert.Contains(t, last.Failure.Body, "metric helpfulness regressed")
}

func TestConvertToJUnit_Properties(t *testing.T) {
	props := ConvertToJUnit(newTestReport()).TestSuites[0].Properties

	propMap := make(map[string]string)
	for _, p := range props {
		propMap[p.Name] = p.Value
	}
	assert.Equal(t, "true", propMap["offline"])
	assert.Equal(t, "1", propMap["version"])
}

func TestCaseFailures_NoSource(t *testing.T) {
	c := passingCase("no-source")
	c.ExpectNoSource = true
	c.NoSourceBehaviorOK = false
	c.CitationCoverage = false
	assert.Equal(t, []string{models.MetricNoSourceBehavior}, CaseFailures(c))

	c.NoSourceBehaviorOK = true
	assert.Empty(t, CaseFailures(c), "uncited no-source case passes")
	assert.Empty(t, CaseFailures(passingCase("ok")))

	stray := passingCase("stray")
	stray.CitationCorrectness = false
	stray.ExpectedCitationConstraintsOK = false
	assert.Equal(t, []string{models.MetricCitationCorrectness, models.MetricExpectedCitationConstraints}, CaseFailures(stray))
}

func TestWriteJUnitXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	require.NoError(t, WriteJUnitXML(newTestReport(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))
	assert.NotContains(t, string(data), "timestamp")

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &parsed))
	assert.Equal(t, 10, parsed.Tests)
	require.Len(t, parsed.TestSuites, 2)
	assert.Equal(t, "case-1", parsed.TestSuites[0].TestCases[0].Name)

	second := filepath.Join(t.TempDir(), "junit.xml")
	require.NoError(t, WriteJUnitXML(newTestReport(), second))
	again, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}
