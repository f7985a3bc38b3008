package models

// GraderKind identifies which per-case signal a grader computes.
type GraderKind string

const (
	GraderKindCitationCoverage    GraderKind = "citation_coverage"
	GraderKindCitationCorrectness GraderKind = "citation_correctness"
	GraderKindCitationConstraints GraderKind = "expected_citation_constraints"
	GraderKindTheme               GraderKind = "theme"
	GraderKindNoSource            GraderKind = "no_source_behavior"
)

// GraderResults is the outcome of running one grader against one case.
type GraderResults struct {
	Name     string         `json:"identifier"`
	Type     GraderKind     `json:"type"`
	Score    float64        `json:"score"`
	Passed   bool           `json:"passed"`
	Feedback string         `json:"feedback"`
	Details  map[string]any `json:"details,omitempty"`
}
