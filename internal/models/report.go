package models

// ReportVersion is the schema version written into every evaluation report.
const ReportVersion = 1

// Metric names. The order of AllMetrics is the canonical order used when
// gates enumerate failures.
const (
	MetricCitationCoverage            = "citation_coverage"
	MetricCitationCorrectness         = "citation_correctness"
	MetricExpectedCitationConstraints = "expected_citation_constraints"
	MetricHelpfulness                 = "helpfulness"
	MetricNoSourceBehavior            = "no_source_behavior"
	MetricDeterministicReplay         = "deterministic_replay"
)

// AllMetrics lists every metric in canonical order.
var AllMetrics = []string{
	MetricCitationCoverage,
	MetricCitationCorrectness,
	MetricExpectedCitationConstraints,
	MetricHelpfulness,
	MetricNoSourceBehavior,
	MetricDeterministicReplay,
}

// Answer modes produced by the pipeline.
const (
	ModeAnswer           = "answer"
	ModeCitationsOnly    = "citations_only"
	ModeNoSupport        = "no_support"
	ModeProviderFallback = "provider_fallback"
)

// Status is the overall verdict of a gate or invariant run.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Metrics maps metric name to a value in [0, 1]. encoding/json sorts map
// keys, which keeps serialized reports stable.
type Metrics map[string]float64

// Thresholds holds the minimum acceptable value for each metric.
type Thresholds struct {
	CitationCoverageMin            float64 `json:"citation_coverage_min"`
	CitationCorrectnessMin         float64 `json:"citation_correctness_min"`
	DeterministicReplayMin         float64 `json:"deterministic_replay_min"`
	ExpectedCitationConstraintsMin float64 `json:"expected_citation_constraints_min"`
	HelpfulnessMin                 float64 `json:"helpfulness_min"`
	NoSourceBehaviorMin            float64 `json:"no_source_behavior_min"`
}

// DefaultThresholds returns the fixed gate thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CitationCoverageMin:            1.0,
		CitationCorrectnessMin:         1.0,
		DeterministicReplayMin:         1.0,
		ExpectedCitationConstraintsMin: 1.0,
		HelpfulnessMin:                 0.67,
		NoSourceBehaviorMin:            1.0,
	}
}

// Min returns the threshold for the named metric.
func (t Thresholds) Min(metric string) (float64, bool) {
	switch metric {
	case MetricCitationCoverage:
		return t.CitationCoverageMin, true
	case MetricCitationCorrectness:
		return t.CitationCorrectnessMin, true
	case MetricExpectedCitationConstraints:
		return t.ExpectedCitationConstraintsMin, true
	case MetricHelpfulness:
		return t.HelpfulnessMin, true
	case MetricNoSourceBehavior:
		return t.NoSourceBehaviorMin, true
	case MetricDeterministicReplay:
		return t.DeterministicReplayMin, true
	}
	return 0, false
}

// CaseResult is the scored outcome of one golden case. Fields are declared in
// JSON key order so the report serializes with sorted keys.
type CaseResult struct {
	AnswerMode                    string   `json:"answer_mode"`
	AnswerText                    string   `json:"answer_text"`
	CitationCorrectness           bool     `json:"citation_correctness"`
	CitationCoverage              bool     `json:"citation_coverage"`
	Citations                     []string `json:"citations"`
	ExpectNoSource                bool     `json:"expect_no_source"`
	ExpectedCitationConstraintsOK bool     `json:"expected_citation_constraints_ok"`
	ID                            string   `json:"id"`
	NoSourceBehaviorOK            bool     `json:"no_source_behavior_ok"`
	Question                      string   `json:"question"`
	SelectedCandidateIDs          []string `json:"selected_candidate_ids"`
	ThemeScore                    float64  `json:"theme_score"`
}

// Failures groups gate failure messages by gate.
type Failures struct {
	Regression []string `json:"regression"`
	Threshold  []string `json:"threshold"`
}

// HasAny reports whether either gate failed.
func (f Failures) HasAny() bool {
	return len(f.Threshold) > 0 || len(f.Regression) > 0
}

// Report is the complete artifact of one evaluation run. It carries no
// wall-clock data so that two offline runs produce identical bytes.
type Report struct {
	Cases                 []CaseResult `json:"cases"`
	DeterministicReplayOK bool         `json:"deterministic_replay_ok"`
	Failures              Failures     `json:"failures"`
	Metrics               Metrics      `json:"metrics"`
	Offline               bool         `json:"offline"`
	Thresholds            Thresholds   `json:"thresholds"`
	Version               int          `json:"version"`
}

// Passed reports whether the run cleared every gate.
func (r *Report) Passed() bool {
	return !r.Failures.HasAny()
}
