package invariants

import (
	"fmt"
	"strings"

	"github.com/namel3ss/evalgate/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	CheckConstitutionPresent = "constitution_present"
	principleConstitution    = "Constitution integrity"
)

// MandatorySections are the headings every constitution must keep.
var MandatorySections = []string{
	"Article I - Determinism Is a First-Class Invariant",
	"Article II - AI Boundaries Must Be Explicit",
	"Article III - Citations and Provenance Are Product Requirements",
	"Article VI - Failure Must Be Honest and Visible",
	"Non-Amendable Clauses",
	"Amendment Process",
}

// ConstitutionChecker requires the governance document to exist and to carry
// every mandatory section as a heading.
type ConstitutionChecker struct {
	Sections []string
}

var _ Checker = (*ConstitutionChecker)(nil)

func (*ConstitutionChecker) ID() string { return CheckConstitutionPresent }

func (c *ConstitutionChecker) Check(in *Inputs) models.CheckResult {
	if !in.ConstitutionFound {
		return fail(CheckConstitutionPresent, principleConstitution,
			"Missing constitution file: "+in.ConstitutionPath,
			"Create docs/constitution.md with mandatory constitutional sections.")
	}

	headings := Headings(in.Constitution)
	var missing []string
	for _, section := range c.Sections {
		if !hasHeading(headings, section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return fail(CheckConstitutionPresent, principleConstitution,
			fmt.Sprintf("Constitution missing required sections: %s", quoteList(missing)),
			"Restore required sections or amend through the constitutional process.")
	}
	return pass(CheckConstitutionPresent, principleConstitution,
		"Constitution file present with required sections.")
}

// Headings returns the raw text of every ATX or setext heading in a markdown
// document, in document order.
func Headings(source []byte) []string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var headings []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := h.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		headings = append(headings, strings.TrimSpace(b.String()))
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// hasHeading matches a section inside a heading so numbering or trailing
// qualifiers ("## Article I - ... (2024)") still count.
func hasHeading(headings []string, section string) bool {
	for _, h := range headings {
		if strings.Contains(h, section) {
			return true
		}
	}
	return false
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
