package graders

import (
	"context"
	"fmt"

	"github.com/namel3ss/evalgate/internal/models"
)

// noSourceGrader checks that a case expecting no support is answered in
// no_support mode without citations. Other cases pass unconditionally.
type noSourceGrader struct {
	name string
}

func (g *noSourceGrader) Name() string            { return g.name }
func (g *noSourceGrader) Kind() models.GraderKind { return models.GraderKindNoSource }

func (g *noSourceGrader) Grade(_ context.Context, gc *Context) (*models.GraderResults, error) {
	if !gc.Case.ExpectNoSource {
		return verdict(g.name, g.Kind(), true, "Case expects a sourced answer", nil), nil
	}

	passed := gc.AnswerMode == models.ModeNoSupport && len(gc.Citations) == 0
	feedback := "Answer declined without citations"
	if !passed {
		feedback = fmt.Sprintf("Expected %s mode with no citations, got mode %q with %d citation(s)",
			models.ModeNoSupport, gc.AnswerMode, len(gc.Citations))
	}
	return verdict(g.name, g.Kind(), passed, feedback, map[string]any{
		"answer_mode": gc.AnswerMode,
		"citations":   len(gc.Citations),
	}), nil
}
