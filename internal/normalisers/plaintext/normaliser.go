package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/normalisers/textclean"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
// Blank-line separated blocks are treated as pages so that plain text
// exports of regulations keep a citable locator.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
		"text/csv",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise splits the text on blank lines and numbers each block as a page.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content, _ := textclean.Decode(raw.Content)
	content = strings.ReplaceAll(content, "\r\n", "\n")

	blocks := strings.Split(content, "\n\n")
	pages := make([]textclean.PageText, len(blocks))
	for i, b := range blocks {
		pages[i] = textclean.PageText{Number: i + 1, Text: b}
	}

	return textclean.Build(raw, pages)
}
