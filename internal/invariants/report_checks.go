package invariants

import (
	"fmt"

	"github.com/namel3ss/evalgate/internal/models"
)

const (
	CheckDeterministicReplay = "deterministic_replay_required"
	CheckCitationContract    = "citation_contract_required"

	principleReplay    = "Article I: Determinism default"
	principleCitations = "Article III: Citation-first answers"
)

// ReplayChecker requires the report's deterministic_replay metric to be 1.
type ReplayChecker struct{}

var _ Checker = (*ReplayChecker)(nil)

func (*ReplayChecker) ID() string { return CheckDeterministicReplay }

func (*ReplayChecker) Check(in *Inputs) models.CheckResult {
	metric := in.Metrics[models.MetricDeterministicReplay]
	if metric < 1.0 {
		return fail(CheckDeterministicReplay, principleReplay,
			fmt.Sprintf("deterministic_replay metric is %.4f; expected 1.0000", metric),
			"Run offline eval, inspect changed ordering/state, and restore deterministic replay behavior.")
	}
	return pass(CheckDeterministicReplay, principleReplay, "deterministic_replay metric is 1.0000")
}

// CitationContractChecker requires full citation coverage and correctness.
type CitationContractChecker struct{}

var _ Checker = (*CitationContractChecker)(nil)

func (*CitationContractChecker) ID() string { return CheckCitationContract }

func (*CitationContractChecker) Check(in *Inputs) models.CheckResult {
	coverage := in.Metrics[models.MetricCitationCoverage]
	correctness := in.Metrics[models.MetricCitationCorrectness]
	if coverage < 1.0 || correctness < 1.0 {
		return fail(CheckCitationContract, principleCitations,
			fmt.Sprintf("Citation contract failed: coverage=%.4f, correctness=%.4f; expected both 1.0000", coverage, correctness),
			"Fix retrieval/answer citation wiring and rerun eval gate.")
	}
	return pass(CheckCitationContract, principleCitations,
		"citation_coverage and citation_correctness are both 1.0000")
}
