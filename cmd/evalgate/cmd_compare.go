package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/namel3ss/evalgate/internal/baseline"
	"github.com/namel3ss/evalgate/internal/models"
	"github.com/namel3ss/evalgate/internal/reporting"
	"github.com/spf13/cobra"
)

type compareOptions struct {
	format string
	strict bool
}

func newCompareCommand() *cobra.Command {
	opts := &compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <report.json>",
		Short: "Compare an evaluation report with a baseline",
		Long: `Compare the metrics of two evaluation reports.

Prints one row per metric with the baseline and current values, the delta,
the allowed drop from .evalgate.yaml and whether the metric regressed. With
--strict, any regression exits with code 1.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return compareCommandE(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with code 1 when any metric regressed")

	return cmd
}

// comparisonReport is the full comparison output.
type comparisonReport struct {
	Baseline  string                 `json:"baseline"`
	Current   string                 `json:"current"`
	Deltas    []baseline.MetricDelta `json:"deltas"`
	Regressed bool                   `json:"regressed"`
}

func compareCommandE(cmd *cobra.Command, opts *compareOptions, basePath, currentPath string) error {
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", opts.format)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	base, err := loadReportFile(basePath)
	if err != nil {
		return err
	}
	current, err := loadReportFile(currentPath)
	if err != nil {
		return err
	}

	deltas := baseline.Compare(base.Metrics, current.Metrics, cfg.Regression.AllowedDrop)
	report := &comparisonReport{
		Baseline:  basePath,
		Current:   currentPath,
		Deltas:    deltas,
		Regressed: baseline.AnyRegressed(deltas),
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		data, err := reporting.MarshalJSON(report)
		if err != nil {
			return fmt.Errorf("failed to marshal comparison report: %w", err)
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	} else {
		printComparisonTable(out, report)
	}

	if opts.strict && report.Regressed {
		return &GateFailureError{Message: "one or more metrics regressed"}
	}
	return nil
}

func loadReportFile(path string) (*models.Report, error) {
	r, found, err := baseline.Load(path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("failed to load %s: file does not exist", path)
	}
	return r, nil
}

func printComparisonTable(w io.Writer, r *comparisonReport) {
	const metricWidth = 32
	_, fail := statusIcons(w)

	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintln(w, " METRIC COMPARISON")
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  baseline: %s\n", r.Baseline)
	fmt.Fprintf(w, "  current:  %s\n\n", r.Current)

	fmt.Fprintf(w, "  %s  %-9s  %-9s  %-9s  %-7s  %s\n",
		padRight("Metric", metricWidth), "Baseline", "Current", "Delta", "Allowed", "Verdict")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 76))

	for _, d := range r.Deltas {
		base := "n/a"
		delta := "n/a"
		verdict := "new"
		if d.InBaseline {
			base = fmt.Sprintf("%.4f", d.Baseline)
			icon := " "
			if d.Delta > 0 {
				icon = "↑"
			} else if d.Delta < 0 {
				icon = "↓"
			}
			delta = fmt.Sprintf("%s%+.4f", icon, d.Delta)
			verdict = "ok"
			if d.Regressed {
				verdict = fail + " regressed"
			}
		}
		fmt.Fprintf(w, "  %s  %-9s  %-9.4f  %s  %-7.4f  %s\n",
			padRight(d.Metric, metricWidth), base, d.Current, padRight(delta, 9), d.AllowedDrop, verdict)
	}
	fmt.Fprintln(w)
}
