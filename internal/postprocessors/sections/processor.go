// Package sections annotates chunks with the regulation heading they fall under.
package sections

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// heading matches "Artículo 12", "ARTÍCULO 3°", "Título II", "Capítulo 4".
var heading = regexp.MustCompile(`(?i)\b(art[íi]culo|t[íi]tulo|cap[íi]tulo)\s+(\d+|[ivxlc]+)\b`)

// Processor sets Chunk.Section from the nearest preceding heading.
type Processor struct{}

// New creates a section annotator.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sections"
}

type mark struct {
	offset int
	label  string
}

// Process annotates chunks in place. A chunk takes the last heading that
// starts at or before its offset, or else the first heading inside it.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	marks := findHeadings(doc.Text)
	if len(marks) == 0 {
		return chunks, nil
	}

	for i := range chunks {
		c := &chunks[i]
		// First heading starting after the chunk start.
		j := sort.Search(len(marks), func(k int) bool { return marks[k].offset > c.Offset })
		switch {
		case j > 0:
			c.Section = marks[j-1].label
		case marks[0].offset < c.Offset+len(c.Text):
			c.Section = marks[0].label
		}
	}
	return chunks, nil
}

func findHeadings(text string) []mark {
	locs := heading.FindAllStringSubmatchIndex(text, -1)
	marks := make([]mark, 0, len(locs))
	for _, loc := range locs {
		kind := strings.ToLower(text[loc[2]:loc[3]])
		number := strings.ToUpper(text[loc[4]:loc[5]])
		marks = append(marks, mark{offset: loc[0], label: canonical(kind) + " " + number})
	}
	return marks
}

func canonical(kind string) string {
	switch {
	case strings.HasPrefix(kind, "art"):
		return "Artículo"
	case strings.HasPrefix(kind, "t"):
		return "Título"
	default:
		return "Capítulo"
	}
}
