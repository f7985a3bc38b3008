package models

// CheckResult is the outcome of one constitutional invariant check.
type CheckResult struct {
	CheckID   string `json:"check_id"`
	Passed    bool   `json:"passed"`
	Principle string `json:"principle"`
	Reason    string `json:"reason"`
	Recovery  string `json:"recovery"`
}

// InvariantPayload aggregates all check results of one invariant run.
// Violations holds the failed checks; for an execution error it holds a
// single descriptive string instead, so the element type is left open.
type InvariantPayload struct {
	Checks     []CheckResult `json:"checks"`
	Error      string        `json:"error,omitempty"`
	Status     Status        `json:"status"`
	Violations []any         `json:"violations"`
}

// Passed reports whether every invariant held.
func (p *InvariantPayload) Passed() bool {
	return p.Status == StatusPass
}
