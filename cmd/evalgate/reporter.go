package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/namel3ss/evalgate/internal/evaluation"
	"github.com/namel3ss/evalgate/internal/gate"
	"github.com/namel3ss/evalgate/internal/models"
	"github.com/namel3ss/evalgate/internal/reporting"
	"github.com/namel3ss/evalgate/internal/spinner"
	"golang.org/x/term"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// statusIcons picks glyphs for w: check marks on a terminal, ASCII otherwise
// so that CI logs stay greppable.
func statusIcons(w io.Writer) (pass, fail string) {
	if isTerminal(w) {
		return "✓", "✗"
	}
	return "PASS", "FAIL"
}

// padRight pads s to width display columns.
func padRight(s string, width int) string {
	if sw := runewidth.StringWidth(s); sw < width {
		return s + strings.Repeat(" ", width-sw)
	}
	return s
}

// newProgressListener prints one line per case and a closing replay line.
func newProgressListener(w io.Writer) evaluation.ProgressListener {
	pass, fail := statusIcons(w)
	return func(event evaluation.ProgressEvent) {
		switch event.EventType {
		case evaluation.EventSeedComplete:
			fmt.Fprintf(w, "Seeded %v asset(s); evaluating %d case(s)\n", event.Details["assets"], event.TotalCases)
		case evaluation.EventCaseComplete:
			icon := pass
			if !event.Passed {
				icon = fail
			}
			fmt.Fprintf(w, "[%d/%d] %s %s (mode=%v, theme=%.4f)\n",
				event.CaseNum, event.TotalCases, icon, event.CaseID,
				event.Details["answer_mode"], event.Details["theme_score"])
		case evaluation.EventGraderResult:
			if !event.Passed {
				fmt.Fprintf(w, "      %s %v: %v\n", fail, event.Details["grader"], event.Details["feedback"])
			}
		case evaluation.EventReplayComplete:
			icon := pass
			if !event.Passed {
				icon = fail
			}
			fmt.Fprintf(w, "%s deterministic replay\n", icon)
		}
	}
}

// newSpinnerListener shows the case being asked on an interactive terminal.
func newSpinnerListener(s *spinner.Spinner) evaluation.ProgressListener {
	return func(event evaluation.ProgressEvent) {
		switch event.EventType {
		case evaluation.EventCaseStart:
			s.Update(fmt.Sprintf("[%d/%d] %s", event.CaseNum, event.TotalCases, event.CaseID))
		case evaluation.EventCaseComplete:
			if event.CaseNum == event.TotalCases {
				s.Update("Replaying anchor question")
			}
		}
	}
}

// FormatGitHubComment formats a report as a markdown comment for GitHub PRs
func FormatGitHubComment(report *models.Report, reportPath string) string {
	var b strings.Builder

	b.WriteString("## evalgate results\n\n")

	statusIcon := "✅ Passed"
	if !report.Passed() {
		statusIcon = "❌ Failed"
	}
	replay := "stable"
	if !report.DeterministicReplayOK {
		replay = "**changed**"
	}
	fmt.Fprintf(&b, "**Status:** %s | **Cases:** %d | **Replay:** %s | **Offline:** %t\n\n",
		statusIcon, len(report.Cases), replay, report.Offline)

	b.WriteString("### Metrics\n\n")
	b.WriteString("| Metric | Value | Minimum | Status |\n")
	b.WriteString("|--------|-------|---------|--------|\n")
	for _, name := range gate.MetricOrder(report.Metrics) {
		value := report.Metrics[name]
		minimum, _ := report.Thresholds.Min(name)
		icon := "✅"
		if value < minimum {
			icon = "❌"
		}
		fmt.Fprintf(&b, "| %s | %.4f | %.2f | %s |\n", name, value, minimum, icon)
	}
	b.WriteString("\n")

	var failing []models.CaseResult
	for _, c := range report.Cases {
		if len(reporting.CaseFailures(c)) > 0 {
			failing = append(failing, c)
		}
	}
	if len(failing) > 0 {
		b.WriteString("### Failed Cases\n\n")
		b.WriteString("| Case | Mode | Failed checks |\n")
		b.WriteString("|------|------|---------------|\n")
		for _, c := range failing {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", c.ID, c.AnswerMode, strings.Join(reporting.CaseFailures(c), ", "))
		}
		b.WriteString("\n")
	}

	if len(report.Failures.Regression) > 0 {
		b.WriteString("### ⚠️ Regressions\n\n")
		for _, msg := range report.Failures.Regression {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "**Report:** `%s` | **Version:** %d\n", reportPath, report.Version)

	return b.String()
}
