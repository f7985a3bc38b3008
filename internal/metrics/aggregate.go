package metrics

import "github.com/namel3ss/evalgate/internal/models"

// Aggregate folds per-case results into the run metrics. Citation and
// helpfulness metrics cover the sourced cases only; no_source_behavior covers
// the cases that expect no source. An empty subset scores 1.0.
func Aggregate(results []models.CaseResult, replayOK bool) models.Metrics {
	var (
		sourced, noSource                         int
		covered, correct, constrained, noSourceOK int
		themeScores                               []float64
	)

	for _, r := range results {
		if r.ExpectNoSource {
			noSource++
			if r.NoSourceBehaviorOK {
				noSourceOK++
			}
			continue
		}

		sourced++
		if r.CitationCoverage {
			covered++
		}
		if r.CitationCorrectness {
			correct++
		}
		if r.ExpectedCitationConstraintsOK {
			constrained++
		}
		themeScores = append(themeScores, r.ThemeScore)
	}

	replay := 0.0
	if replayOK {
		replay = 1.0
	}

	return models.Metrics{
		models.MetricCitationCoverage:            Ratio(covered, sourced),
		models.MetricCitationCorrectness:         Ratio(correct, sourced),
		models.MetricExpectedCitationConstraints: Ratio(constrained, sourced),
		models.MetricHelpfulness:                 MeanOrOne(themeScores),
		models.MetricNoSourceBehavior:            Ratio(noSourceOK, noSource),
		models.MetricDeterministicReplay:         replay,
	}
}
