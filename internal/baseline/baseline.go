// Package baseline loads a previously accepted evaluation report and compares
// its metrics with a new run.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/namel3ss/evalgate/internal/gate"
	"github.com/namel3ss/evalgate/internal/metrics"
	"github.com/namel3ss/evalgate/internal/models"
)

// Load reads the report at path. found is false, with a nil error, when the
// file does not exist; a missing baseline disables the regression gate.
func Load(path string) (report *models.Report, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading baseline %s: %w", path, err)
	}

	var r models.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	if r.Metrics == nil {
		r.Metrics = models.Metrics{}
	}
	return &r, true, nil
}

// MetricDelta pairs a metric's baseline and current values.
// Positive Delta means the current run is better.
type MetricDelta struct {
	Metric      string  `json:"metric"`
	Baseline    float64 `json:"baseline"`
	Current     float64 `json:"current"`
	Delta       float64 `json:"delta"`
	AllowedDrop float64 `json:"allowed_drop"`
	// InBaseline is false for metrics the baseline never recorded; those are
	// never treated as regressions.
	InBaseline bool `json:"in_baseline"`
	Regressed  bool `json:"regressed"`
}

// Compare returns one delta per current metric, in canonical metric order,
// using the same regression rule as the gate.
func Compare(base, current models.Metrics, allowedDrop map[string]float64) []MetricDelta {
	deltas := make([]MetricDelta, 0, len(current))
	for _, name := range gate.MetricOrder(current) {
		cur := current[name]
		b, ok := base[name]
		d := MetricDelta{
			Metric:      name,
			Current:     cur,
			AllowedDrop: allowedDrop[name],
			InBaseline:  ok,
		}
		if ok {
			d.Baseline = b
			d.Delta = metrics.Round4(cur - b)
			d.Regressed = gate.Regressed(b, cur, d.AllowedDrop)
		}
		deltas = append(deltas, d)
	}
	return deltas
}

// AnyRegressed reports whether any delta regressed.
func AnyRegressed(deltas []MetricDelta) bool {
	for _, d := range deltas {
		if d.Regressed {
			return true
		}
	}
	return false
}
