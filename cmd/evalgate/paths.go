package main

import (
	"fmt"
	"path/filepath"

	"github.com/namel3ss/evalgate/internal/projectconfig"
	"github.com/spf13/cobra"
)

// loadProjectConfig reads .evalgate.yaml from the working directory or one of
// its parents.
func loadProjectConfig() (*projectconfig.ProjectConfig, error) {
	cfg, err := projectconfig.Load(".")
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringFlag returns the flag's value when it was set on the command line and
// fallback otherwise.
func stringFlag(cmd *cobra.Command, name, value, fallback string) string {
	if cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}

func boolFlag(cmd *cobra.Command, name string, value bool, fallback *bool) bool {
	if cmd.Flags().Changed(name) || fallback == nil {
		return value
	}
	return *fallback
}

// resolveAppDir makes the app directory absolute.
func resolveAppDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving app dir %q: %w", dir, err)
	}
	return abs, nil
}

// inAppDir resolves p against the app directory unless it is absolute.
func inAppDir(appDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(appDir, p)
}
