package graders

import (
	"context"
	"fmt"
	"strings"

	"github.com/namel3ss/evalgate/internal/metrics"
	"github.com/namel3ss/evalgate/internal/models"
)

// ThemeGraderArgs holds the arguments for creating a theme grader.
type ThemeGraderArgs struct {
	// Name is the identifier for this grader, used in results and error messages.
	Name string
	// PassScore is the score at or above which the grader reports a pass.
	// Zero means any score passes; the run-level helpfulness threshold is what
	// gates theme coverage.
	PassScore float64 `mapstructure:"pass_score"`
}

// themeGrader scores how many of a case's expected answer themes appear in the
// answer text or the cited snippets.
type themeGrader struct {
	name      string
	passScore float64
}

// NewThemeGrader creates a [themeGrader]. Themes are matched as
// case-insensitive substrings of the answer text joined with the snippets.
func NewThemeGrader(args ThemeGraderArgs) (*themeGrader, error) {
	if args.PassScore < 0 || args.PassScore > 1 {
		return nil, fmt.Errorf("theme grader '%s': pass_score must be within [0, 1]", args.Name)
	}
	return &themeGrader{name: args.Name, passScore: args.PassScore}, nil
}

func (tg *themeGrader) Name() string            { return tg.name }
func (tg *themeGrader) Kind() models.GraderKind { return models.GraderKindTheme }

func (tg *themeGrader) Grade(_ context.Context, gc *Context) (*models.GraderResults, error) {
	score, missing := ThemeScore(gc.AnswerText, gc.Snippets(), gc.Case.ExpectedAnswerThemes)

	feedback := "All expected themes found"
	if len(missing) > 0 {
		feedback = "Missing expected themes: " + strings.Join(missing, ", ")
	}

	return &models.GraderResults{
		Name:     tg.name,
		Type:     models.GraderKindTheme,
		Score:    score,
		Passed:   score >= tg.passScore,
		Feedback: feedback,
		Details: map[string]any{
			"expected": gc.Case.ExpectedAnswerThemes,
			"missing":  missing,
		},
	}, nil
}

// ThemeScore returns the fraction of themes found in the answer text or
// snippets, rounded to 4 decimals, and the themes that were not found. The
// denominator is the full theme list, so blank themes count as misses. No
// themes scores 1.0.
func ThemeScore(answerText string, snippets []string, themes []string) (float64, []string) {
	if len(themes) == 0 {
		return 1.0, nil
	}

	corpus := strings.ToLower(answerText + "\n" + strings.Join(snippets, "\n"))
	hits := 0
	var missing []string
	for _, theme := range themes {
		token := strings.ToLower(strings.TrimSpace(theme))
		if token != "" && strings.Contains(corpus, token) {
			hits++
			continue
		}
		missing = append(missing, theme)
	}
	return metrics.Round4(float64(hits) / float64(len(themes))), missing
}
