// Package postprocessors turns normalised documents into annotated chunks.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains PostProcessors and runs them in order.
// After the last processor it checks that every chunk is a verbatim
// substring of the document at its recorded offset.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the document through all processors in order.
// The first processor receives nil chunks and should create them.
// Subsequent processors receive and may annotate the chunks.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var chunks []domain.Chunk

	for _, processor := range p.processors {
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	if err := checkProvenance(doc, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

func checkProvenance(doc *domain.Document, chunks []domain.Chunk) error {
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		end := c.Offset + len(c.Text)
		if c.Offset < 0 || end > len(doc.Text) || doc.Text[c.Offset:end] != c.Text {
			return fmt.Errorf("chunk %s is not a substring of document %s at offset %d", c.ID, doc.ID, c.Offset)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
