// Package projectconfig provides the ProjectConfig struct and loader for
// .evalgate.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/namel3ss/evalgate/internal/gate"
	"github.com/namel3ss/evalgate/internal/records"
)

// FileName is the configuration file searched for.
const FileName = ".evalgate.yaml"

// Default values for project configuration. These are the single source of
// truth: New() references them and no other code should duplicate them.
const (
	DefaultAppDir = "apps/rag-demo"

	// Golden, report and baseline paths are relative to the app directory.
	DefaultGolden   = "eval/golden.json"
	DefaultReport   = "eval/report.json"
	DefaultBaseline = "eval/report_baseline.json"
	// The constitution path is relative to the working directory.
	DefaultConstitution = "docs/constitution.md"

	DefaultStoreDriver = records.DriverMemory
	DefaultStorePath   = "eval/records.db"

	DefaultThemePassScore = 0.67
)

// PathsConfig holds artifact locations.
type PathsConfig struct {
	AppDir       string `yaml:"app_dir,omitempty"`
	Golden       string `yaml:"golden,omitempty"`
	Report       string `yaml:"report,omitempty"`
	Baseline     string `yaml:"baseline,omitempty"`
	Constitution string `yaml:"constitution,omitempty"`
}

// RegressionConfig holds baseline comparison settings.
type RegressionConfig struct {
	// AllowedDrop replaces the default per-metric table when set.
	AllowedDrop      map[string]float64 `yaml:"allowed_drop,omitempty"`
	FailOnRegression *bool              `yaml:"fail_on_regression,omitempty"`
}

// StoreConfig selects the record store backing the reference pipeline.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// GradersConfig holds grader settings.
type GradersConfig struct {
	ThemePassScore *float64 `yaml:"theme_pass_score,omitempty"`
}

// PassScore returns the theme pass score, falling back to the default when
// unset.
func (g GradersConfig) PassScore() float64 {
	if g.ThemePassScore == nil {
		return DefaultThemePassScore
	}
	return *g.ThemePassScore
}

// ProjectConfig is the top-level configuration loaded from .evalgate.yaml.
type ProjectConfig struct {
	Paths      PathsConfig      `yaml:"paths,omitempty"`
	Offline    *bool            `yaml:"offline,omitempty"`
	Regression RegressionConfig `yaml:"regression,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Graders    GradersConfig    `yaml:"graders,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			AppDir:       DefaultAppDir,
			Golden:       DefaultGolden,
			Report:       DefaultReport,
			Baseline:     DefaultBaseline,
			Constitution: DefaultConstitution,
		},
		Offline: boolPtr(true),
		Regression: RegressionConfig{
			AllowedDrop:      gate.DefaultAllowedDrop(),
			FailOnRegression: boolPtr(false),
		},
		Store: StoreConfig{
			Driver: DefaultStoreDriver,
			Path:   DefaultStorePath,
		},
		Graders: GradersConfig{
			ThemePassScore: float64Ptr(DefaultThemePassScore),
		},
	}
}

// Load finds .evalgate.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return cfg, nil
}

// Validate rejects values no command could act on.
func (c *ProjectConfig) Validate() error {
	switch c.Store.Driver {
	case records.DriverMemory, records.DriverSQLite:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", records.DriverMemory, records.DriverSQLite, c.Store.Driver)
	}
	for _, metric := range slices.Sorted(maps.Keys(c.Regression.AllowedDrop)) {
		if drop := c.Regression.AllowedDrop[metric]; drop < 0 || drop > 1 {
			return fmt.Errorf("regression.allowed_drop.%s must be within [0, 1], got %v", metric, drop)
		}
	}
	if score := c.Graders.PassScore(); score < 0 || score > 1 {
		return fmt.Errorf("graders.theme_pass_score must be within [0, 1], got %v", score)
	}
	return nil
}

// findConfigFile walks up from dir looking for .evalgate.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.AppDir != "" {
		dst.Paths.AppDir = src.Paths.AppDir
	}
	if src.Paths.Golden != "" {
		dst.Paths.Golden = src.Paths.Golden
	}
	if src.Paths.Report != "" {
		dst.Paths.Report = src.Paths.Report
	}
	if src.Paths.Baseline != "" {
		dst.Paths.Baseline = src.Paths.Baseline
	}
	if src.Paths.Constitution != "" {
		dst.Paths.Constitution = src.Paths.Constitution
	}

	if src.Offline != nil {
		dst.Offline = src.Offline
	}

	// Regression
	if src.Regression.AllowedDrop != nil {
		dst.Regression.AllowedDrop = src.Regression.AllowedDrop
	}
	if src.Regression.FailOnRegression != nil {
		dst.Regression.FailOnRegression = src.Regression.FailOnRegression
	}

	// Store
	if src.Store.Driver != "" {
		dst.Store.Driver = src.Store.Driver
	}
	if src.Store.Path != "" {
		dst.Store.Path = src.Store.Path
	}

	// Graders
	if src.Graders.ThemePassScore != nil {
		dst.Graders.ThemePassScore = src.Graders.ThemePassScore
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func float64Ptr(f float64) *float64 {
	return &f
}
