package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evalgate",
		Short: "evalgate - deterministic quality gate for RAG apps",
		Long: `evalgate replays a golden question set against a RAG app and gates the
result on citation fidelity, helpfulness and replay determinism.

It also checks the app's constitutional invariants: the governance document,
the evaluation report and the app source must agree on determinism, citations
and explicit failure modes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newInvariantsCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newKBCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
