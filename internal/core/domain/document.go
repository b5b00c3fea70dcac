package domain

import (
	"fmt"
	"time"
)

// Document is a normalised regulation document.
// Documents are immutable once ingested; a newer version replaces the old one
// through re-ingestion under the same ID.
type Document struct {
	// ID is the unique document identifier.
	ID string

	// Title is the document title shown in citations.
	Title string

	// SourceURL is the published location of the document.
	SourceURL string

	// RetrievedAt is when the document was acquired.
	RetrievedAt time.Time

	// EffectiveDate is the validity date of the regulation.
	EffectiveDate string

	// MIMEType records the original content type.
	MIMEType string

	// Text is the full extracted text. Chunk offsets index into it.
	Text string

	// Pages maps page numbers onto byte ranges of Text.
	Pages []Page

	// IngestedAt is when the document was stored.
	IngestedAt time.Time
}

// Page is a byte range of Document.Text belonging to one physical page.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Start is the inclusive byte offset into Document.Text.
	Start int

	// End is the exclusive byte offset into Document.Text.
	End int
}

// PageText returns the text of the given page.
func (d *Document) PageText(p Page) string {
	return d.Text[p.Start:p.End]
}

// PageList returns the document pages, or a single page spanning
// the whole text when no pages were recorded.
func (d *Document) PageList() []Page {
	if len(d.Pages) > 0 {
		return d.Pages
	}
	return []Page{{Number: 1, Start: 0, End: len(d.Text)}}
}

// Chunk is a bounded segment of a document's text.
type Chunk struct {
	// ID is derived from the document ID, page and sequence on that page.
	ID string

	// DocumentID references the parent document.
	DocumentID string

	// Text is a contiguous substring of the parent document's text.
	Text string

	// Page is the 1-based page the chunk was taken from.
	Page int

	// Section is the nearest heading above the chunk (e.g. "Artículo 12"), if any.
	Section string

	// Offset is the byte offset of Text within the document's text.
	Offset int

	// Position is the chunk's sequence number across the whole document.
	Position int

	// Embedding is the vector representation, set once computed.
	Embedding []float32
}

// Locator returns the human-findable location used in citation tags.
func (c *Chunk) Locator() string {
	return FormatLocator(c.Page)
}

// ChunkID builds the identifier of the idx-th chunk on a document page.
func ChunkID(docID string, page, idx int) string {
	return fmt.Sprintf("%s_p%d_c%d", docID, page, idx)
}

// FormatLocator renders a page locator the way citation tags spell it.
func FormatLocator(page int) string {
	return fmt.Sprintf("página %d", page)
}
