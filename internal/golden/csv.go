package golden

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// CSV columns understood by LoadCSVCases. Only id and question are required.
const (
	ColumnID                   = "id"
	ColumnQuestion             = "question"
	ColumnExpectNoSource       = "expect_no_source"
	ColumnExpectedAnswerThemes = "expected_answer_themes"
	ColumnExpectedCitations    = "expected_citations"
)

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers (column names).
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[strings.TrimSpace(h)] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// LoadCSVCases reads golden cases from a CSV file.
//
// expected_answer_themes is a ';'-separated list. expected_citations is a
// ';'-separated list of "source|page" pairs where either side may be empty.
func LoadCSVCases(path string) ([]Case, error) {
	rows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}

	cases := make([]Case, 0, len(rows))
	for i, row := range rows {
		c, err := caseFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: %w", i+2, err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func caseFromRow(row Row) (Case, error) {
	id, ok := row[ColumnID]
	if !ok || strings.TrimSpace(id) == "" {
		return Case{}, fmt.Errorf("missing %s", ColumnID)
	}
	question, ok := row[ColumnQuestion]
	if !ok {
		return Case{}, fmt.Errorf("missing %s column", ColumnQuestion)
	}

	c := Case{
		ID:       strings.TrimSpace(id),
		Question: question,
	}

	if raw := strings.TrimSpace(row[ColumnExpectNoSource]); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Case{}, fmt.Errorf("invalid %s %q: %w", ColumnExpectNoSource, raw, err)
		}
		c.ExpectNoSource = v
	}

	c.ExpectedAnswerThemes = splitList(row[ColumnExpectedAnswerThemes])

	for _, entry := range splitList(row[ColumnExpectedCitations]) {
		ec, err := parseCitationPair(entry)
		if err != nil {
			return Case{}, err
		}
		c.ExpectedCitations = append(c.ExpectedCitations, ec)
	}

	return c, nil
}

func parseCitationPair(entry string) (ExpectedCitation, error) {
	source, pageRaw, _ := strings.Cut(entry, "|")
	ec := ExpectedCitation{SourceContains: strings.TrimSpace(source)}
	if pageRaw = strings.TrimSpace(pageRaw); pageRaw != "" {
		page, err := strconv.Atoi(pageRaw)
		if err != nil {
			return ExpectedCitation{}, fmt.Errorf("invalid citation page %q: %w", pageRaw, err)
		}
		ec.Page = &page
	}
	return ec, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
