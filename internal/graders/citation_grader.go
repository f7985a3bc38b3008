package graders

import (
	"context"
	"fmt"
	"strings"

	"github.com/namel3ss/evalgate/internal/models"
)

// citationCoverageGrader passes when the answer cites at least one passage.
type citationCoverageGrader struct {
	name string
}

func (g *citationCoverageGrader) Name() string { return g.name }
func (g *citationCoverageGrader) Kind() models.GraderKind {
	return models.GraderKindCitationCoverage
}

func (g *citationCoverageGrader) Grade(_ context.Context, gc *Context) (*models.GraderResults, error) {
	n := len(gc.Citations)
	feedback := fmt.Sprintf("Answer cites %d passage(s)", n)
	if n == 0 {
		feedback = "Answer has no citations"
	}
	return verdict(g.name, g.Kind(), n > 0, feedback, map[string]any{"citations": n}), nil
}

// citationCorrectnessGrader passes when every cited id was selected by
// retrieval for this answer. An answer with no citations is trivially correct.
type citationCorrectnessGrader struct {
	name string
}

func (g *citationCorrectnessGrader) Name() string { return g.name }
func (g *citationCorrectnessGrader) Kind() models.GraderKind {
	return models.GraderKindCitationCorrectness
}

func (g *citationCorrectnessGrader) Grade(_ context.Context, gc *Context) (*models.GraderResults, error) {
	selected := make(map[string]bool, len(gc.SelectedCandidateIDs))
	for _, id := range gc.SelectedCandidateIDs {
		selected[id] = true
	}

	stray := []string{}
	for _, id := range gc.Citations {
		if !selected[id] {
			stray = append(stray, id)
		}
	}

	feedback := "All citations were selected by retrieval"
	if len(stray) > 0 {
		feedback = "Citations not selected by retrieval: " + strings.Join(stray, ", ")
	}
	return verdict(g.name, g.Kind(), len(stray) == 0, feedback, map[string]any{"stray": stray}), nil
}

// citationConstraintsGrader passes when every expected citation is matched by
// at least one chat citation. A constraint matches when the citation's title
// (or source name when untitled) contains SourceContains case-insensitively and
// its page number equals Page. Unset fields match anything.
type citationConstraintsGrader struct {
	name string
}

func (g *citationConstraintsGrader) Name() string { return g.name }
func (g *citationConstraintsGrader) Kind() models.GraderKind {
	return models.GraderKindCitationConstraints
}

func (g *citationConstraintsGrader) Grade(_ context.Context, gc *Context) (*models.GraderResults, error) {
	var unmatched []string

	for _, want := range gc.Case.ExpectedCitations {
		source := strings.ToLower(want.SourceContains)
		matched := false
		for _, cit := range gc.ChatCitations {
			sourceOK := source == "" || strings.Contains(strings.ToLower(cit.DisplaySource()), source)
			pageOK := want.Page == nil || (cit.PageNumber != nil && *cit.PageNumber == *want.Page)
			if sourceOK && pageOK {
				matched = true
				break
			}
		}
		if !matched {
			unmatched = append(unmatched, describeConstraint(want.SourceContains, want.Page))
		}
	}

	feedback := "All expected citations matched"
	if len(unmatched) > 0 {
		feedback = "Unmatched expected citations: " + strings.Join(unmatched, "; ")
	}
	return verdict(g.name, g.Kind(), len(unmatched) == 0, feedback, map[string]any{
		"expected":  len(gc.Case.ExpectedCitations),
		"unmatched": unmatched,
	}), nil
}

func describeConstraint(source string, page *int) string {
	if source == "" {
		source = "*"
	}
	if page == nil {
		return source
	}
	return fmt.Sprintf("%s p.%d", source, *page)
}
