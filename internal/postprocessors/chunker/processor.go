// Package chunker provides a fixed-size, page-aware text chunking processor.
package chunker

import (
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 850

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 150

// Processor splits each document page into fixed-size windows.
// Sizes are counted in characters (runes), never bytes, so accented
// text is windowed the same way as ASCII. Chunks never span pages.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// The window must advance.
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Size returns the configured chunk size.
func (p *Processor) Size() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document into chunks page by page.
// Input chunks are ignored; this processor creates new chunks from document text.
//
// On each page consecutive chunks share exactly overlap characters and
// only the last chunk may be shorter than the chunk size.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Text == "" {
		return nil, nil
	}

	step := p.chunkSize - p.overlap
	var chunks []domain.Chunk
	position := 0

	for _, page := range doc.PageList() {
		text := doc.PageText(page)
		bounds := runeOffsets(text)
		n := len(bounds) - 1

		for start, idx := 0, 0; start < n; start, idx = start+step, idx+1 {
			end := start + p.chunkSize
			if end > n {
				end = n
			}

			chunks = append(chunks, domain.Chunk{
				ID:         domain.ChunkID(doc.ID, page.Number, idx),
				DocumentID: doc.ID,
				Text:       text[bounds[start]:bounds[end]],
				Page:       page.Number,
				Offset:     page.Start + bounds[start],
				Position:   position,
			})
			position++

			if end == n {
				break
			}
		}
	}

	return chunks, nil
}

// runeOffsets returns the byte offset of every rune in s, followed by len(s).
func runeOffsets(s string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
