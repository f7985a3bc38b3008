package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/namel3ss/evalgate/internal/models"
)

// MarshalJSON encodes v with 2-space indentation and a trailing newline.
// Map keys come out sorted and HTML is left unescaped, so the same value
// always yields the same bytes.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes v to path, creating parent directories as needed.
func WriteJSON(path string, v any) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteReport writes the evaluation report to path.
func WriteReport(path string, r *models.Report) error {
	return WriteJSON(path, r)
}

// Summary is printed after a passing run: the metrics and where the full
// report was written.
type Summary struct {
	Metrics models.Metrics `json:"metrics"`
	Report  string         `json:"report"`
}

// NewSummary builds the success summary for r written at path.
func NewSummary(r *models.Report, path string) Summary {
	return Summary{Metrics: r.Metrics, Report: path}
}
