package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/namel3ss/evalgate/internal/golden"
	"github.com/namel3ss/evalgate/internal/validation"
	"github.com/spf13/cobra"
)

const (
	kindAuto   = "auto"
	kindGolden = "golden"
	kindReport = "report"
)

func newValidateCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <golden.json|golden.csv|report.json>",
		Short: "Validate a golden dataset or evaluation report",
		Long: `Validate an artifact against its embedded JSON schema.

Golden datasets may be JSON or CSV; CSV files are always treated as golden
datasets. For JSON the kind is detected from the top-level keys unless --kind
is given. Exit code 1 means the artifact is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateCommandE(cmd, args[0], kind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", kindAuto, "Artifact kind: auto, golden or report")

	return cmd
}

func validateCommandE(cmd *cobra.Command, path, kind string) error {
	switch kind {
	case kindAuto, kindGolden, kindReport:
	default:
		return fmt.Errorf("unsupported kind %q: must be %s, %s or %s", kind, kindAuto, kindGolden, kindReport)
	}

	if kind == kindAuto {
		detected, err := detectKind(path)
		if err != nil {
			return err
		}
		kind = detected
	}

	var problems []string
	switch kind {
	case kindGolden:
		ds, err := golden.Load(path)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid golden dataset (%d cases)\n", path, len(ds.Cases))
			return nil
		}
	case kindReport:
		errs, err := validation.ValidateReportFile(path)
		if err != nil {
			return err
		}
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid evaluation report\n", path)
			return nil
		}
		problems = errs
	}

	_, fail := statusIcons(cmd.OutOrStdout())
	for _, p := range problems {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", fail, p)
	}
	return &GateFailureError{Message: fmt.Sprintf("%s: invalid %s (%d problem(s))", path, kind, len(problems))}
}

// detectKind treats CSV as golden and JSON with a "metrics" key as a report.
func detectKind(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return kindGolden, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		// Let the golden loader report the parse error.
		return kindGolden, nil
	}
	if _, ok := top["metrics"]; ok {
		return kindReport, nil
	}
	return kindGolden, nil
}
