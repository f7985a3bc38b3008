package main

import (
	"fmt"
	"path/filepath"

	"github.com/namel3ss/evalgate/internal/invariants"
	"github.com/namel3ss/evalgate/internal/pipeline"
	"github.com/namel3ss/evalgate/internal/reporting"
	"github.com/spf13/cobra"
)

type invariantsOptions struct {
	appDir              string
	reportPath          string
	constitutionPath    string
	outPath             string
	allowNondeterminism bool
}

func newInvariantsCommand() *cobra.Command {
	opts := &invariantsOptions{}
	cmd := &cobra.Command{
		Use:   "invariants",
		Short: "Check the app's constitutional invariants",
		Long: `Check the five constitutional invariants of an app:

  constitution_present               governance document keeps its mandatory sections
  deterministic_replay_required      the report shows deterministic replay
  citation_contract_required         citation coverage and correctness are both 1.0
  nondeterministic_tokens_forbidden  app.ai avoids random, uuid, timestamp and clock reads
  explicit_failure_modes_required    app.ai spells out every degradation mode and notice

The check payload is always printed. The report and --out paths are relative
to the app directory; the constitution path is relative to the working
directory. Exit code 0 means every invariant held.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invariantsCommandE(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.appDir, "app-dir", "", "App directory containing app.ai (default from config: apps/rag-demo)")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Evaluation report (default: eval/report.json)")
	cmd.Flags().StringVar(&opts.constitutionPath, "constitution", "", "Constitution markdown (default: docs/constitution.md)")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "Also write the payload to this path")
	cmd.Flags().BoolVar(&opts.allowNondeterminism, "allow-nondeterminism", false, "Explicitly allow nondeterministic tokens in app.ai")

	return cmd
}

func invariantsCommandE(cmd *cobra.Command, opts *invariantsOptions) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	appDir, err := resolveAppDir(stringFlag(cmd, "app-dir", opts.appDir, cfg.Paths.AppDir))
	if err != nil {
		return err
	}
	constitution, err := filepath.Abs(stringFlag(cmd, "constitution", opts.constitutionPath, cfg.Paths.Constitution))
	if err != nil {
		return fmt.Errorf("resolving constitution path: %w", err)
	}

	payload := invariants.Run(invariants.Options{
		AppPath:             filepath.Join(appDir, pipeline.AppFile),
		ReportPath:          inAppDir(appDir, stringFlag(cmd, "report", opts.reportPath, cfg.Paths.Report)),
		ConstitutionPath:    constitution,
		AllowNondeterminism: opts.allowNondeterminism,
	})

	if opts.outPath != "" {
		if err := reporting.WriteJSON(inAppDir(appDir, opts.outPath), payload); err != nil {
			return err
		}
	}

	data, err := reporting.MarshalJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal invariant payload: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return err
	}

	if !payload.Passed() {
		return &GateFailureError{}
	}
	return nil
}
