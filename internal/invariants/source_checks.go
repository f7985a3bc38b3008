package invariants

import (
	"fmt"
	"slices"
	"strings"

	"github.com/namel3ss/evalgate/internal/models"
)

const (
	CheckNondeterministicTokens = "nondeterministic_tokens_forbidden"
	CheckExplicitFailureModes   = "explicit_failure_modes_required"

	principleNondeterminism = "Article I: No nondeterminism without explicit opt-in"
	principleFailureModes   = "Article VI: No silent degradation"
)

// ForbiddenTokens are matched case-insensitively as plain substrings.
var ForbiddenTokens = []string{
	"random",
	"uuid",
	"timestamp",
	"now(",
	"current_time",
}

// RequiredModeMarkers must appear verbatim in the app source.
var RequiredModeMarkers = []string{
	`"provider_fallback"`,
	`"citations_only"`,
	`"no_support"`,
	"mode is text must be present",
}

// RequiredNoticeMarkers are the user-visible degradation notices.
var RequiredNoticeMarkers = []string{
	"Provider unavailable. Running in citations-only mode.",
	"I couldn't find support in your selected sources.",
	"Citations-only mode is active.",
}

// NondeterminismChecker scans the app source for tokens associated with
// non-reproducible behavior unless the run opted in.
type NondeterminismChecker struct {
	Tokens []string
}

var _ Checker = (*NondeterminismChecker)(nil)

func (*NondeterminismChecker) ID() string { return CheckNondeterministicTokens }

func (c *NondeterminismChecker) Check(in *Inputs) models.CheckResult {
	if in.AllowNondeterminism {
		return models.CheckResult{
			CheckID:   CheckNondeterministicTokens,
			Principle: principleNondeterminism,
			Passed:    true,
			Reason:    "Nondeterminism opt-in enabled for this run.",
			Recovery:  "Disable opt-in for constitutional mode.",
		}
	}

	found := FindTokens(in.AppSource, c.Tokens)
	if len(found) > 0 {
		return fail(CheckNondeterministicTokens, principleNondeterminism,
			fmt.Sprintf("Potential nondeterministic tokens found in app.ai: %s", quoteList(found)),
			"Remove nondeterministic constructs or use an explicit opt-in profile outside constitutional mode.")
	}
	return pass(CheckNondeterministicTokens, principleNondeterminism,
		"No forbidden nondeterministic tokens detected.")
}

// FindTokens returns the tokens present in source, case-insensitively,
// sorted and de-duplicated.
func FindTokens(source string, tokens []string) []string {
	lower := strings.ToLower(source)
	var found []string
	for _, token := range tokens {
		if strings.Contains(lower, strings.ToLower(token)) {
			found = append(found, token)
		}
	}
	slices.Sort(found)
	return slices.Compact(found)
}

// FailureModesChecker requires every mode marker and notice to be spelled
// out in the app source.
type FailureModesChecker struct {
	Modes   []string
	Notices []string
}

var _ Checker = (*FailureModesChecker)(nil)

func (*FailureModesChecker) ID() string { return CheckExplicitFailureModes }

func (c *FailureModesChecker) Check(in *Inputs) models.CheckResult {
	missingModes := missingMarkers(in.AppSource, c.Modes)
	missingNotices := missingMarkers(in.AppSource, c.Notices)
	if len(missingModes) > 0 || len(missingNotices) > 0 {
		return fail(CheckExplicitFailureModes, principleFailureModes,
			fmt.Sprintf("Missing explicit degradation markers: modes=%s, notices=%s",
				listOrOK(missingModes), listOrOK(missingNotices)),
			"Add explicit mode fields and user-visible fallback/no-support notices.")
	}
	return pass(CheckExplicitFailureModes, principleFailureModes,
		"Failure modes and notices are explicit in app contract.")
}

func missingMarkers(source string, markers []string) []string {
	var missing []string
	for _, m := range markers {
		if !strings.Contains(source, m) {
			missing = append(missing, m)
		}
	}
	return missing
}

func listOrOK(items []string) string {
	if len(items) == 0 {
		return "ok"
	}
	return quoteList(items)
}
