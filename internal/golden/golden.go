// Package golden loads the fixed set of evaluation cases replayed by the gate.
package golden

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/namel3ss/evalgate/internal/validation"
)

// ExpectedCitation constrains which citation must appear in an answer.
// Empty SourceContains or nil Page matches any citation.
type ExpectedCitation struct {
	SourceContains string `json:"source_contains"`
	Page           *int   `json:"page"`
}

// Case is one golden question with its expected behavior.
type Case struct {
	ID                   string             `json:"id"`
	Question             string             `json:"question"`
	ExpectNoSource       bool               `json:"expect_no_source"`
	ExpectedCitations    []ExpectedCitation `json:"expected_citations,omitempty"`
	ExpectedAnswerThemes []string           `json:"expected_answer_themes,omitempty"`
}

// Dataset is the parsed golden file.
type Dataset struct {
	Cases []Case `json:"cases"`
}

// Load reads a golden dataset from path. Files ending in .csv are parsed with
// LoadCSVCases; everything else is treated as JSON and checked against the
// embedded golden schema before decoding.
func Load(path string) (*Dataset, error) {
	var ds *Dataset
	var err error

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		ds, err = loadCSVDataset(path)
	} else {
		ds, err = loadJSONDataset(path)
	}
	if err != nil {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("golden: %s: %w", path, err)
	}
	return ds, nil
}

func loadJSONDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("golden: read %s: %w", path, err)
	}

	if errs := validation.ValidateGoldenBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("golden: %s does not match schema: %s", path, strings.Join(errs, "; "))
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("golden: parse %s: %w", path, err)
	}
	return &ds, nil
}

func loadCSVDataset(path string) (*Dataset, error) {
	cases, err := LoadCSVCases(path)
	if err != nil {
		return nil, err
	}
	return &Dataset{Cases: cases}, nil
}

// Validate checks that case identifiers are unique.
func (d *Dataset) Validate() error {
	seen := make(map[string]bool, len(d.Cases))
	for _, c := range d.Cases {
		if seen[c.ID] {
			return fmt.Errorf("duplicate case id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Sorted returns the cases ordered by identifier. The order matters: the first
// sourced case in this order becomes the replay anchor.
func (d *Dataset) Sorted() []Case {
	out := make([]Case, len(d.Cases))
	copy(out, d.Cases)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
