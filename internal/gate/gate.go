// Package gate decides whether an evaluation run may ship: every metric must
// clear its fixed threshold and, when a baseline is supplied, no metric may
// drop further than its allowed regression.
package gate

import (
	"fmt"
	"maps"
	"slices"

	"github.com/namel3ss/evalgate/internal/metrics"
	"github.com/namel3ss/evalgate/internal/models"
)

// DefaultAllowedDrop returns the regression tolerance per metric. Metrics not
// listed may not drop at all.
func DefaultAllowedDrop() map[string]float64 {
	return map[string]float64{models.MetricHelpfulness: 0.10}
}

// Thresholds returns one "<metric> below threshold" message per metric whose
// value is under its minimum, in canonical metric order. A metric missing
// from m counts as 0.
func Thresholds(m models.Metrics, t models.Thresholds) []string {
	failures := []string{}
	for _, name := range models.AllMetrics {
		minimum, _ := t.Min(name)
		if m[name] < minimum {
			failures = append(failures, name+" below threshold")
		}
	}
	return failures
}

// Regression compares current metrics with a baseline. A metric fails when it
// dropped by more than its allowed amount; metrics absent from the baseline
// are skipped. Values are compared at 4 decimal places so a drop of exactly
// the allowed amount passes.
func Regression(current, baseline models.Metrics, allowedDrop map[string]float64) []string {
	failures := []string{}
	for _, name := range MetricOrder(current) {
		base, ok := baseline[name]
		if !ok {
			continue
		}
		cur := current[name]
		allowed := allowedDrop[name]
		if Regressed(base, cur, allowed) {
			failures = append(failures, fmt.Sprintf(
				"metric %s regressed from %.4f to %.4f (allowed drop %.4f)", name, base, cur, allowed))
		}
	}
	return failures
}

// Regressed reports whether the drop from base to current exceeds allowed,
// comparing at 4 decimal places.
func Regressed(base, current, allowed float64) bool {
	drop := metrics.Round4(metrics.Round4(base) - metrics.Round4(current))
	return drop > metrics.Round4(allowed)
}

// MetricOrder lists the canonical metrics present in m followed by any other
// keys in sorted order.
func MetricOrder(m models.Metrics) []string {
	order := make([]string, 0, len(m))
	for _, name := range models.AllMetrics {
		if _, ok := m[name]; ok {
			order = append(order, name)
		}
	}

	var extra []string
	for _, name := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(models.AllMetrics, name) {
			extra = append(extra, name)
		}
	}
	return append(order, extra...)
}
