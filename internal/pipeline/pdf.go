package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/zlib"
)

var (
	pdfStreamRE = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\nendstream`)
	pdfTjRE     = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*Tj`)
	pdfTJRE     = regexp.MustCompile(`(?s)\[(.*?)\]\s*TJ`)
	pdfStringRE = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
)

// pdfPages extracts the text shown by each content stream of a simple PDF.
// Every stream that shows text is treated as one page, in file order.
// FlateDecode streams are inflated; other filters are skipped.
func pdfPages(data []byte) ([]string, error) {
	var pages []string
	for _, obj := range bytes.Split(data, []byte("endobj")) {
		loc := pdfStreamRE.FindSubmatchIndex(obj)
		if loc == nil {
			continue
		}
		dict, body := obj[:loc[0]], obj[loc[2]:loc[3]]
		if bytes.Contains(dict, []byte("/Filter")) {
			if !bytes.Contains(dict, []byte("/FlateDecode")) {
				continue
			}
			inflated, err := inflate(body)
			if err != nil {
				return nil, err
			}
			body = inflated
		}

		text := pdfStreamText(body)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func inflate(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inflating pdf stream: %w", err)
	}
	defer r.Close() //nolint:errcheck

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflating pdf stream: %w", err)
	}
	return out, nil
}

// pdfStreamText collects the strings passed to the Tj and TJ operators, one
// line per operator, in the order they appear.
func pdfStreamText(body []byte) string {
	type shown struct {
		at   int
		text string
	}
	var runs []shown

	for _, loc := range pdfTjRE.FindAllSubmatchIndex(body, -1) {
		runs = append(runs, shown{at: loc[0], text: unescapePDF(string(body[loc[2]:loc[3]]))})
	}
	for _, loc := range pdfTJRE.FindAllSubmatchIndex(body, -1) {
		var b strings.Builder
		for _, s := range pdfStringRE.FindAllSubmatch(body[loc[2]:loc[3]], -1) {
			b.WriteString(unescapePDF(string(s[1])))
		}
		runs = append(runs, shown{at: loc[0], text: b.String()})
	}

	// Tj and TJ matches were collected separately; restore stream order.
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].at < runs[j].at })

	lines := make([]string, 0, len(runs))
	for _, r := range runs {
		if t := strings.TrimSpace(r.text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

var pdfEscapes = strings.NewReplacer(
	`\(`, "(",
	`\)`, ")",
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
)

func unescapePDF(s string) string {
	return pdfEscapes.Replace(s)
}
