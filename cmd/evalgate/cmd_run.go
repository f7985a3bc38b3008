package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/namel3ss/evalgate/internal/baseline"
	"github.com/namel3ss/evalgate/internal/evaluation"
	"github.com/namel3ss/evalgate/internal/gate"
	"github.com/namel3ss/evalgate/internal/golden"
	"github.com/namel3ss/evalgate/internal/metrics"
	"github.com/namel3ss/evalgate/internal/models"
	"github.com/namel3ss/evalgate/internal/offline"
	"github.com/namel3ss/evalgate/internal/pipeline"
	"github.com/namel3ss/evalgate/internal/records"
	"github.com/namel3ss/evalgate/internal/reporting"
	"github.com/namel3ss/evalgate/internal/spinner"
	"github.com/spf13/cobra"
)

const (
	formatDefault       = "default"
	formatGitHubComment = "github-comment"
)

type runOptions struct {
	appDir           string
	goldenPath       string
	reportPath       string
	baselinePath     string
	offline          bool
	failOnRegression bool
	store            string
	storePath        string
	junitPath        string
	format           string
	verbose          bool
	interpret        bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the golden evaluation and gate the result",
		Long: `Run the golden evaluation against an app directory and gate the result.

The sample assets under <app-dir>/assets are uploaded and ingested, every
golden case is asked in id order, and the first sourced case is asked again to
verify deterministic replay. The report is written to --report; golden,
report and baseline paths are relative to the app directory.

Exit code 0 means every gate passed, 1 means a threshold or regression gate
failed (the full report is printed), 2 means the run could not be scored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommandE(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.appDir, "app-dir", "", "App directory containing app.ai (default from config: apps/rag-demo)")
	cmd.Flags().StringVar(&opts.goldenPath, "golden", "", "Golden dataset, JSON or CSV (default: eval/golden.json)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Report output path (default: eval/report.json)")
	cmd.Flags().StringVar(&opts.baselinePath, "baseline", "", "Baseline report path (default: eval/report_baseline.json)")
	cmd.Flags().BoolVar(&opts.offline, "offline", true, "Clear provider credentials and answer in citations-only mode")
	cmd.Flags().BoolVar(&opts.failOnRegression, "fail-on-regression", false, "Fail when metrics regress against the baseline")
	cmd.Flags().StringVar(&opts.store, "store", "", "Record store: memory or sqlite (default: memory)")
	cmd.Flags().StringVar(&opts.storePath, "store-path", "", "SQLite record store path (default: eval/records.db)")
	cmd.Flags().StringVar(&opts.junitPath, "junit", "", "Also write a JUnit XML report to this path")
	cmd.Flags().StringVar(&opts.format, "format", formatDefault, "Output format: default, github-comment")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print per-case progress to stderr")
	cmd.Flags().BoolVar(&opts.interpret, "interpret", false, "Print a plain-language interpretation to stderr")

	return cmd
}

func runCommandE(cmd *cobra.Command, opts *runOptions) error {
	if opts.format != formatDefault && opts.format != formatGitHubComment {
		return fmt.Errorf("unsupported format %q: must be %s or %s", opts.format, formatDefault, formatGitHubComment)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	appDir, err := resolveAppDir(stringFlag(cmd, "app-dir", opts.appDir, cfg.Paths.AppDir))
	if err != nil {
		return err
	}
	goldenPath := inAppDir(appDir, stringFlag(cmd, "golden", opts.goldenPath, cfg.Paths.Golden))
	reportPath := inAppDir(appDir, stringFlag(cmd, "report", opts.reportPath, cfg.Paths.Report))
	baselinePath := inAppDir(appDir, stringFlag(cmd, "baseline", opts.baselinePath, cfg.Paths.Baseline))
	offlineRun := boolFlag(cmd, "offline", opts.offline, cfg.Offline)
	failOnRegression := boolFlag(cmd, "fail-on-regression", opts.failOnRegression, cfg.Regression.FailOnRegression)
	storeDriver := stringFlag(cmd, "store", opts.store, cfg.Store.Driver)
	storePath := inAppDir(appDir, stringFlag(cmd, "store-path", opts.storePath, cfg.Store.Path))

	if err := offline.PrepareEnv(offlineRun); err != nil {
		return err
	}

	ds, err := golden.Load(goldenPath)
	if err != nil {
		return fmt.Errorf("failed to load golden dataset: %w", err)
	}

	store, err := openFreshStore(storeDriver, storePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("closing record store", "error", cerr)
		}
	}()

	p, err := pipeline.New(appDir, store)
	if err != nil {
		return fmt.Errorf("failed to open app: %w", err)
	}

	runner := evaluation.NewRunner(p, store,
		evaluation.WithOffline(offlineRun),
		evaluation.WithThemePassScore(cfg.Graders.PassScore()),
	)
	stopProgress := func() {}
	switch {
	case opts.verbose:
		runner.OnProgress(newProgressListener(cmd.ErrOrStderr()))
	case isTerminal(cmd.ErrOrStderr()):
		spin := spinner.Start(cmd.ErrOrStderr(), "Seeding sample assets")
		runner.OnProgress(newSpinnerListener(spin))
		stopProgress = spin.Stop
	}

	slog.Debug("Running evaluation", "app_dir", appDir, "golden", goldenPath, "cases", len(ds.Cases), "offline", offlineRun, "store", storeDriver)
	result, err := runner.Run(cmd.Context(), ds.Sorted(), evaluation.SampleAssets(filepath.Join(appDir, "assets")))
	stopProgress()
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	report := buildReport(result, offlineRun)
	if failOnRegression {
		base, found, err := baseline.Load(baselinePath)
		if err != nil {
			return err
		}
		if found {
			report.Failures.Regression = gate.Regression(report.Metrics, base.Metrics, cfg.Regression.AllowedDrop)
		} else {
			slog.Debug("No baseline report, skipping regression gate", "path", baselinePath)
		}
	}

	if err := reporting.WriteReport(reportPath, report); err != nil {
		return err
	}
	if opts.junitPath != "" {
		if err := reporting.WriteJUnitXML(report, opts.junitPath); err != nil {
			return fmt.Errorf("failed to write JUnit report: %w", err)
		}
	}

	if err := printRunResult(cmd.OutOrStdout(), opts.format, report, reportPath); err != nil {
		return err
	}
	if opts.interpret {
		fmt.Fprintln(cmd.ErrOrStderr())
		fmt.Fprint(cmd.ErrOrStderr(), reporting.FormatSummaryReport(report))
	}

	if !report.Passed() {
		return &GateFailureError{Message: fmt.Sprintf("evaluation gate failed: %d threshold and %d regression failure(s)",
			len(report.Failures.Threshold), len(report.Failures.Regression))}
	}
	return nil
}

// openFreshStore opens the record store for a run. A SQLite file left by an
// earlier run is removed first so every run starts from an empty store.
func openFreshStore(driver, path string) (records.Store, error) {
	if driver == records.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating record store directory: %w", err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(path + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("resetting record store: %w", err)
			}
		}
	}
	store, err := records.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return store, nil
}

func buildReport(result *evaluation.Result, offlineRun bool) *models.Report {
	m := metrics.Aggregate(result.Cases, result.DeterministicReplayOK)
	thresholds := models.DefaultThresholds()
	return &models.Report{
		Cases:                 result.Cases,
		DeterministicReplayOK: result.DeterministicReplayOK,
		Failures: models.Failures{
			Regression: []string{},
			Threshold:  gate.Thresholds(m, thresholds),
		},
		Metrics:    m,
		Offline:    offlineRun,
		Thresholds: thresholds,
		Version:    models.ReportVersion,
	}
}

// printRunResult prints the compact success summary, or the full report when
// a gate failed. The github-comment format prints markdown instead.
func printRunResult(w io.Writer, format string, report *models.Report, reportPath string) error {
	if format == formatGitHubComment {
		_, err := fmt.Fprint(w, FormatGitHubComment(report, reportPath))
		return err
	}

	if !report.Passed() {
		data, err := reporting.MarshalJSON(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	data, err := json.Marshal(reporting.NewSummary(report, filepath.ToSlash(reportPath)))
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
