// Package invariants enforces the constitutional rules of a RAG app: the
// governance document is intact, the evaluation report shows deterministic
// replay and a full citation contract, and the app source neither reaches for
// nondeterminism nor degrades silently.
package invariants

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/namel3ss/evalgate/internal/models"
)

// ExecutionViolation is the single violation recorded when the checks could
// not run at all.
const ExecutionViolation = "invariant execution error"

// Inputs holds everything the checks read. Each check sees the same value and
// none of them mutate it.
type Inputs struct {
	// AppSource is the text of the app's declarative source (app.ai).
	AppSource string
	// Metrics comes from the evaluation report.
	Metrics models.Metrics
	// ConstitutionPath is reported in failures; ConstitutionFound is false
	// when the file does not exist.
	ConstitutionPath  string
	Constitution      []byte
	ConstitutionFound bool

	AllowNondeterminism bool
}

// Checker runs a single invariant check.
type Checker interface {
	ID() string
	Check(in *Inputs) models.CheckResult
}

// Default returns the five constitutional checks in reporting order.
func Default() []Checker {
	return []Checker{
		&ConstitutionChecker{Sections: MandatorySections},
		&ReplayChecker{},
		&CitationContractChecker{},
		&NondeterminismChecker{Tokens: ForbiddenTokens},
		&FailureModesChecker{Modes: RequiredModeMarkers, Notices: RequiredNoticeMarkers},
	}
}

// Options locates the artifacts an invariant run reads.
type Options struct {
	AppPath             string
	ReportPath          string
	ConstitutionPath    string
	AllowNondeterminism bool
}

// LoadInputs reads the app source, report and constitution. A missing app
// source or report, or a report that is not valid JSON, is an error; a
// missing constitution is not, since that is a check failure.
func LoadInputs(opts Options) (*Inputs, error) {
	app, err := os.ReadFile(opts.AppPath)
	if err != nil {
		return nil, fmt.Errorf("reading app source %s: %w", opts.AppPath, err)
	}

	data, err := os.ReadFile(opts.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", opts.ReportPath, err)
	}
	var report struct {
		Metrics models.Metrics `json:"metrics"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", opts.ReportPath, err)
	}

	in := &Inputs{
		AppSource:           string(app),
		Metrics:             report.Metrics,
		ConstitutionPath:    opts.ConstitutionPath,
		AllowNondeterminism: opts.AllowNondeterminism,
	}
	constitution, err := os.ReadFile(opts.ConstitutionPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading constitution %s: %w", opts.ConstitutionPath, err)
	default:
		in.Constitution = constitution
		in.ConstitutionFound = true
	}
	return in, nil
}

// Evaluate runs checkers against in and aggregates the payload.
func Evaluate(in *Inputs, checkers []Checker) *models.InvariantPayload {
	payload := &models.InvariantPayload{
		Checks:     make([]models.CheckResult, 0, len(checkers)),
		Status:     models.StatusPass,
		Violations: []any{},
	}
	for _, c := range checkers {
		result := c.Check(in)
		slog.Debug("invariant checked", "check", c.ID(), "passed", result.Passed)
		payload.Checks = append(payload.Checks, result)
		if !result.Passed {
			payload.Violations = append(payload.Violations, result)
		}
	}
	if len(payload.Violations) > 0 {
		payload.Status = models.StatusFail
	}
	return payload
}

// Run loads the inputs and evaluates the default checks. It never returns an
// error: when the inputs cannot be loaded the payload is the synthetic
// execution-error failure.
func Run(opts Options) *models.InvariantPayload {
	in, err := LoadInputs(opts)
	if err != nil {
		slog.Warn("invariant run aborted", "error", err)
		return ErrorPayload(err)
	}
	return Evaluate(in, Default())
}

// ErrorPayload is the failure payload for a run that could not execute.
func ErrorPayload(err error) *models.InvariantPayload {
	return &models.InvariantPayload{
		Checks:     []models.CheckResult{},
		Error:      err.Error(),
		Status:     models.StatusFail,
		Violations: []any{ExecutionViolation},
	}
}

func pass(id, principle, reason string) models.CheckResult {
	return models.CheckResult{CheckID: id, Principle: principle, Passed: true, Reason: reason, Recovery: "None"}
}

func fail(id, principle, reason, recovery string) models.CheckResult {
	return models.CheckResult{CheckID: id, Principle: principle, Reason: reason, Recovery: recovery}
}
