package reporting

import (
	"fmt"
	"strings"

	"github.com/namel3ss/evalgate/internal/gate"
	"github.com/namel3ss/evalgate/internal/models"
)

// InterpretScore returns a plain-language label for a numeric score (0–1).
func InterpretScore(score float64) string {
	pct := score * 100
	switch {
	case pct > 90:
		return "Excellent (>90%)"
	case pct >= 70:
		return "Good (70-90%)"
	case pct >= 50:
		return "Needs Work (50-70%)"
	default:
		return "Poor (<50%)"
	}
}

// InterpretMetric explains a metric value against its minimum.
func InterpretMetric(value, minimum float64) string {
	if value >= minimum {
		return fmt.Sprintf("meets minimum %.2f", minimum)
	}
	return fmt.Sprintf("below minimum %.2f by %.4f", minimum, minimum-value)
}

// InterpretReplay explains the deterministic replay verdict.
func InterpretReplay(ok bool) string {
	if ok {
		return "Replaying the anchor case produced identical citations."
	}
	return "Replaying the anchor case produced different citations. Look for randomness, clock reads or unordered iteration in retrieval."
}

// FormatSummaryReport produces a plain-language report from an evaluation
// report.
func FormatSummaryReport(r *models.Report) string {
	var b strings.Builder

	b.WriteString("=== Interpretation ===\n\n")

	verdict := "PASS"
	if !r.Passed() {
		verdict = "FAIL"
	}
	fmt.Fprintf(&b, "Verdict: %s (%d cases, offline=%t)\n", verdict, len(r.Cases), r.Offline)
	fmt.Fprintf(&b, "Replay:  %s\n", InterpretReplay(r.DeterministicReplayOK))

	b.WriteString("\nMetrics:\n")
	for _, name := range gate.MetricOrder(r.Metrics) {
		value := r.Metrics[name]
		icon := "✓"
		detail := InterpretScore(value)
		if minimum, ok := r.Thresholds.Min(name); ok {
			if value < minimum {
				icon = "✗"
			}
			detail = InterpretMetric(value, minimum)
		}
		fmt.Fprintf(&b, "  %s %s: %.4f (%s)\n", icon, name, value, detail)
	}

	var failing []models.CaseResult
	for _, c := range r.Cases {
		if len(CaseFailures(c)) > 0 {
			failing = append(failing, c)
		}
	}
	if len(failing) > 0 {
		b.WriteString("\nFailing Cases:\n")
		for _, c := range failing {
			fmt.Fprintf(&b, "  ✗ %s: %s\n", c.ID, strings.Join(CaseFailures(c), ", "))
		}
	}

	if len(r.Failures.Regression) > 0 {
		b.WriteString("\nRegressions:\n")
		for _, msg := range r.Failures.Regression {
			fmt.Fprintf(&b, "  - %s\n", msg)
		}
	}

	return b.String()
}
