// Package graders computes the per-case signals of an evaluation run. Each
// grader looks at one answer and reports a score in [0, 1] and a verdict.
package graders

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/namel3ss/evalgate/internal/bridge"
	"github.com/namel3ss/evalgate/internal/golden"
	"github.com/namel3ss/evalgate/internal/models"
)

// Grader is the interface for all per-case validators
type Grader interface {
	// Name returns the grader identifier
	Name() string

	// Kind returns the signal the grader computes
	Kind() models.GraderKind

	// Grade scores one answer
	Grade(ctx context.Context, gradingContext *Context) (*models.GraderResults, error)
}

// Context is everything the pipeline produced for one case.
type Context struct {
	Case *golden.Case

	AnswerMode string
	AnswerText string
	// Citations are the citation ids of the answer record, in order.
	Citations []string
	// SelectedCandidateIDs are the chunk ids retrieval selected for the answer.
	SelectedCandidateIDs []string
	// ChatCitations are the citations rendered in the chat view.
	ChatCitations []bridge.ChatCitation
}

// Snippets returns the chat citation snippets in order.
func (c *Context) Snippets() []string {
	out := make([]string, len(c.ChatCitations))
	for i, cit := range c.ChatCitations {
		out[i] = cit.Snippet
	}
	return out
}

// Create creates a grader of the given kind. params are decoded into the
// grader's args; graders without options ignore them.
func Create(kind models.GraderKind, name string, params map[string]any) (Grader, error) {
	switch kind {
	case models.GraderKindCitationCoverage:
		return &citationCoverageGrader{name: name}, nil
	case models.GraderKindCitationCorrectness:
		return &citationCorrectnessGrader{name: name}, nil
	case models.GraderKindCitationConstraints:
		return &citationConstraintsGrader{name: name}, nil
	case models.GraderKindTheme:
		var args ThemeGraderArgs
		if err := mapstructure.Decode(params, &args); err != nil {
			return nil, err
		}
		args.Name = name
		return NewThemeGrader(args)
	case models.GraderKindNoSource:
		return &noSourceGrader{name: name}, nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid grader type", kind)
	}
}

// Default returns one grader per case signal, in report field order.
func Default() []Grader {
	kinds := []models.GraderKind{
		models.GraderKindCitationCoverage,
		models.GraderKindCitationCorrectness,
		models.GraderKindCitationConstraints,
		models.GraderKindTheme,
		models.GraderKindNoSource,
	}

	out := make([]Grader, 0, len(kinds))
	for _, k := range kinds {
		g, err := Create(k, string(k), nil)
		if err != nil {
			// every kind above is registered in Create
			panic(err)
		}
		out = append(out, g)
	}
	return out
}

func verdict(name string, kind models.GraderKind, passed bool, feedback string, details map[string]any) *models.GraderResults {
	score := 0.0
	if passed {
		score = 1.0
	}
	return &models.GraderResults{
		Name:     name,
		Type:     kind,
		Score:    score,
		Passed:   passed,
		Feedback: feedback,
		Details:  details,
	}
}
