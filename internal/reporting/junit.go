package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/namel3ss/evalgate/internal/gate"
	"github.com/namel3ss/evalgate/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite groups either the golden cases or the gates.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one golden case or one gate check.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

// JUnitFailure represents a failed case or gate.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// CaseFailures lists the checks a case failed, in a fixed order. A no-source
// case is judged only on its no-source behavior. The theme score feeds
// helpfulness and is never a per-case failure on its own.
func CaseFailures(c models.CaseResult) []string {
	var failed []string
	if c.ExpectNoSource {
		if !c.NoSourceBehaviorOK {
			failed = append(failed, models.MetricNoSourceBehavior)
		}
		return failed
	}
	if !c.CitationCoverage {
		failed = append(failed, models.MetricCitationCoverage)
	}
	if !c.CitationCorrectness {
		failed = append(failed, models.MetricCitationCorrectness)
	}
	if !c.ExpectedCitationConstraintsOK {
		failed = append(failed, models.MetricExpectedCitationConstraints)
	}
	return failed
}

// ConvertToJUnit converts a report into two suites: one testcase per golden
// case, and one per metric threshold plus the regression gate. No timings are
// recorded so the output is as reproducible as the report.
func ConvertToJUnit(r *models.Report) *JUnitTestSuites {
	cases := JUnitTestSuite{
		Name: "cases",
		Properties: []JUnitProperty{
			{Name: "offline", Value: fmt.Sprintf("%t", r.Offline)},
			{Name: "version", Value: fmt.Sprintf("%d", r.Version)},
		},
	}
	for _, c := range r.Cases {
		tc := JUnitTestCase{Name: c.ID, Classname: "evalgate.cases"}
		if failed := CaseFailures(c); len(failed) > 0 {
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%s: %s", c.ID, strings.Join(failed, ", ")),
				Type:    "CaseFailure",
				Body:    formatCase(c),
			}
			cases.Failures++
		}
		cases.TestCases = append(cases.TestCases, tc)
	}
	cases.Tests = len(cases.TestCases)

	gates := JUnitTestSuite{Name: "gates"}
	for _, name := range gate.MetricOrder(r.Metrics) {
		minimum, ok := r.Thresholds.Min(name)
		if !ok {
			continue
		}
		tc := JUnitTestCase{Name: "threshold/" + name, Classname: "evalgate.gates"}
		if value := r.Metrics[name]; value < minimum {
			tc.Failure = &JUnitFailure{
				Message: name + " below threshold",
				Type:    "ThresholdFailure",
				Body:    fmt.Sprintf("value %.4f, minimum %.4f", value, minimum),
			}
			gates.Failures++
		}
		gates.TestCases = append(gates.TestCases, tc)
	}
	regression := JUnitTestCase{Name: "regression", Classname: "evalgate.gates"}
	if len(r.Failures.Regression) > 0 {
		regression.Failure = &JUnitFailure{
			Message: fmt.Sprintf("%d metric(s) regressed", len(r.Failures.Regression)),
			Type:    "RegressionFailure",
			Body:    strings.Join(r.Failures.Regression, "\n"),
		}
		gates.Failures++
	}
	gates.TestCases = append(gates.TestCases, regression)
	gates.Tests = len(gates.TestCases)

	return &JUnitTestSuites{
		Name:       "evalgate",
		Tests:      cases.Tests + gates.Tests,
		Failures:   cases.Failures + gates.Failures,
		TestSuites: []JUnitTestSuite{cases, gates},
	}
}

func formatCase(c models.CaseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "question: %s\n", c.Question)
	fmt.Fprintf(&b, "mode: %s\n", c.AnswerMode)
	fmt.Fprintf(&b, "citations: %s\n", strings.Join(c.Citations, ", "))
	fmt.Fprintf(&b, "selected: %s\n", strings.Join(c.SelectedCandidateIDs, ", "))
	return b.String()
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(r *models.Report, path string) error {
	suites := ConvertToJUnit(r)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	output = append(output, '\n')
	return os.WriteFile(path, output, 0644)
}
