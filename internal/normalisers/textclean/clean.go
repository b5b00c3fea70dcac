// Package textclean turns extracted page text into a page-structured
// Document. Cleaning happens before chunking so that every chunk is a
// substring of the stored document text.
package textclean

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// Footer and header noise found in institutional PDFs.
var (
	whitespace     = regexp.MustCompile(`\s+`)
	pageFooter     = regexp.MustCompile(`(?i)P[áa]gina \d+( de \d+)?`)
	pageCounter    = regexp.MustCompile(`\b\d+/\d+\b`)
	institutionURL = regexp.MustCompile(`(?i)www\.ufro\.cl`)
	institutionRun = regexp.MustCompile(`(?i)Universidad de La Frontera.*?UFRO`)
)

// Clean collapses whitespace and strips running headers and footers.
func Clean(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	text = pageFooter.ReplaceAllString(text, "")
	text = pageCounter.ReplaceAllString(text, "")
	text = institutionRun.ReplaceAllString(text, "")
	text = institutionURL.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// PageText is the raw text of one numbered page.
type PageText struct {
	Number int
	Text   string
}

// pageSeparator joins pages inside Document.Text.
const pageSeparator = "\n\n"

// Build cleans each page and assembles the document. Pages that clean to
// nothing are dropped but keep their numbering gaps. A document with no
// text left fails with *domain.IngestionError.
func Build(raw *domain.RawDocument, pages []PageText) (*domain.Document, error) {
	var b strings.Builder
	var kept []domain.Page

	for _, p := range pages {
		text := Clean(p.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(pageSeparator)
		}
		start := b.Len()
		b.WriteString(text)
		kept = append(kept, domain.Page{Number: p.Number, Start: start, End: b.Len()})
	}

	if len(kept) == 0 {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "no extractable text"}
	}

	retrieved := raw.RetrievedAt
	if retrieved.IsZero() {
		retrieved = time.Now()
	}

	return &domain.Document{
		ID:            raw.DocID,
		Title:         raw.Title,
		SourceURL:     raw.SourceURL,
		RetrievedAt:   retrieved,
		EffectiveDate: raw.EffectiveDate,
		MIMEType:      raw.MIMEType,
		Text:          b.String(),
		Pages:         kept,
	}, nil
}

// Decode converts raw bytes to text, rejecting binary content.
func Decode(content []byte) (string, bool) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), ""), false
	}
	return string(content), true
}
