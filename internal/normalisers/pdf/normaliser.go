// Package pdf extracts per-page text from PDF regulations.
package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/logger"
	"github.com/custodia-labs/regula/internal/normalisers/textclean"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// PageExtractor returns the plain text of every page, 1-based order.
type PageExtractor func(content []byte) ([]string, error)

// Normaliser handles PDF documents.
type Normaliser struct {
	extract PageExtractor
}

// New creates a PDF normaliser backed by ledongthuc/pdf.
func New() *Normaliser {
	return &Normaliser{extract: extractPages}
}

// NewWithExtractor creates a PDF normaliser with a custom page extractor.
func NewWithExtractor(extract PageExtractor) *Normaliser {
	return &Normaliser{extract: extract}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts cleaned text page by page. Scanned PDFs without a
// text layer yield an IngestionError.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	texts, err := n.extract(raw.Content)
	if err != nil {
		return nil, &domain.IngestionError{DocumentID: raw.DocID, Reason: "read pdf", Err: err}
	}

	pages := make([]textclean.PageText, len(texts))
	for i, t := range texts {
		pages[i] = textclean.PageText{Number: i + 1, Text: t}
	}
	return textclean.Build(raw, pages)
}

// extractPages reads every page's plain text. Unreadable pages are
// returned empty so numbering stays aligned with the physical document.
func extractPages(content []byte) (texts []string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	count := reader.NumPage()
	texts = make([]string, count)
	for i := 1; i <= count; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			logger.Warn("pdf: page %d unreadable: %v", i, perr)
			continue
		}
		texts[i-1] = text
	}
	return texts, nil
}
