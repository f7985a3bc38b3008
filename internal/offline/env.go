// Package offline pins the process environment so an evaluation run can
// never reach a networked answer provider.
package offline

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	ProviderVar = "N3_ANSWER_PROVIDER"
	ModelVar    = "N3_ANSWER_MODEL"

	// Inert is the provider and model value meaning "no provider".
	Inert = "none"
)

// ProviderVars are cleared before an offline run.
var ProviderVars = []string{
	ProviderVar,
	ModelVar,
	"NAMEL3SS_OPENAI_API_KEY",
	"OPENAI_API_KEY",
	"NAMEL3SS_ANTHROPIC_API_KEY",
	"ANTHROPIC_API_KEY",
}

// PrepareEnv clears every provider variable and forces the provider and model
// to Inert. It does nothing when offline is false.
func PrepareEnv(offline bool) error {
	if !offline {
		return nil
	}
	for _, key := range ProviderVars {
		if err := os.Unsetenv(key); err != nil {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
	}
	for _, key := range []string{ProviderVar, ModelVar} {
		if err := os.Setenv(key, Inert); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	slog.Debug("offline environment prepared", "cleared", len(ProviderVars))
	return nil
}
