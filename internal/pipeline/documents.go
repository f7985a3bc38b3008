package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

// SnippetWidth is the display width chat citation snippets are truncated to.
const SnippetWidth = 240

// ContentType values the pipeline knows how to read.
const (
	ContentTypePDF      = "application/pdf"
	ContentTypeMarkdown = "text/markdown"
	ContentTypeText     = "text/plain"
)

var paragraphRE = regexp.MustCompile(`\n[ \t]*\n`)

// Chunk is one retrievable passage of an ingested document.
type Chunk struct {
	ID         string `mapstructure:"chunk_id"`
	DocumentID string `mapstructure:"document_id"`
	Title      string `mapstructure:"title"`
	SourceName string `mapstructure:"source_name"`
	PageNumber int    `mapstructure:"page_number"`
	Text       string `mapstructure:"text"`
}

// Snippet returns the chunk text truncated for display.
func (c Chunk) Snippet() string {
	return runewidth.Truncate(strings.Join(strings.Fields(c.Text), " "), SnippetWidth, "...")
}

func (c Chunk) record() map[string]any {
	return map[string]any{
		"chunk_id":    c.ID,
		"document_id": c.DocumentID,
		"title":       c.Title,
		"source_name": c.SourceName,
		"page_number": c.PageNumber,
		"text":        c.Text,
	}
}

// DocumentID derives a stable document id from an upload name.
func DocumentID(name string) string {
	return "doc-" + strings.ReplaceAll(Normalize(name), " ", "-")
}

// ContentTypeFor guesses a content type from a file extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return ContentTypePDF
	case ".md", ".markdown":
		return ContentTypeMarkdown
	default:
		return ContentTypeText
	}
}

// readPages returns the text of each page of the file at path. Text files use
// form feeds as page breaks.
func readPages(path, contentType string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	if contentType == ContentTypePDF {
		pages, err := pdfPages(data)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		return pages, nil
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(text, "\f"), nil
}

// chunkPages splits every page into paragraph chunks. Chunk ids are
// "<document id>:<n>" with n counting from 0 across the whole document.
func chunkPages(documentID, sourceName string, pages []string) []Chunk {
	var chunks []Chunk
	for i, page := range pages {
		for _, para := range paragraphRE.Split(page, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:         fmt.Sprintf("%s:%d", documentID, len(chunks)),
				DocumentID: documentID,
				Title:      sourceName,
				SourceName: sourceName,
				PageNumber: i + 1,
				Text:       para,
			})
		}
	}
	return chunks
}
