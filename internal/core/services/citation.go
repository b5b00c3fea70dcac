package services

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/lexical"
)

// citationPattern is the only accepted tag form: "[Title, página N]".
var citationPattern = regexp.MustCompile(`^\[([^\[\]\n]+), [pP]ágina ([1-9][0-9]*)\]$`)

// locatorWords mark a bracketed span as an attempted citation.
var locatorWords = []string{"pagina", "page", "pag."}

// locatorPrefixes start the part after the last comma of a span that cites
// some other unit of a document ("p. 9", "artículo 12", "sección 4").
var locatorPrefixes = []string{
	"p.", "pp.", "p ", "seccion", "section", "articulo", "article", "art.", "art ",
	"capitulo", "chapter", "titulo", "inciso", "numeral", "parrafo", "anexo", "§",
}

// refusalMarker detects the refusal phrase regardless of accents and of
// institution names a model may append to it.
var refusalMarker = lexical.Fold("No encontré información sobre esto")

// citationTagRef is a well-formed tag found in generated text.
type citationTagRef struct {
	raw   string
	title string
	page  int
}

// parseCitations extracts citation tags from text. Any bracketed span that
// looks like a citation but does not match the grammar is returned in
// malformed. Nested, multi-line and unterminated spans never match.
func parseCitations(text string) (tags []citationTagRef, malformed []string) {
	i := 0
	for i < len(text) {
		if text[i] != '[' {
			i++
			continue
		}

		end, nested, broken := closingBracket(text, i)
		if end < 0 {
			if looksLikeCitation(text[i:]) {
				malformed = append(malformed, text[i:])
			}
			break
		}
		span := text[i : end+1]
		i = end + 1

		m := citationPattern.FindStringSubmatch(span)
		if nested || broken || m == nil || strings.TrimSpace(m[1]) == "" {
			if looksLikeCitation(span) {
				malformed = append(malformed, span)
			}
			continue
		}
		tags = append(tags, citationTagRef{raw: span, title: strings.TrimSpace(m[1]), page: atoiPositive(m[2])})
	}
	return tags, malformed
}

// closingBracket finds the ']' that closes the '[' at start, or -1.
func closingBracket(text string, start int) (end int, nested, broken bool) {
	depth := 0
	for k := start; k < len(text); k++ {
		switch text[k] {
		case '[':
			depth++
			if depth > 1 {
				nested = true
			}
		case ']':
			depth--
			if depth == 0 {
				return k, nested, broken
			}
		case '\n':
			broken = true
		}
	}
	return -1, nested, broken
}

// looksLikeCitation reports whether span names a locator, either a page word
// anywhere or a locator after its last comma.
func looksLikeCitation(span string) bool {
	folded := lexical.Fold(span)
	for _, w := range locatorWords {
		if strings.Contains(folded, w) {
			return true
		}
	}

	inner := strings.TrimRight(strings.TrimLeft(folded, "["), "]")
	comma := strings.LastIndex(inner, ",")
	if comma < 0 {
		return false
	}
	locator := strings.TrimSpace(inner[comma+1:])
	if locator == "" {
		return false
	}
	if strings.ContainsAny(locator, "0123456789") {
		return true
	}
	for _, p := range locatorPrefixes {
		if strings.HasPrefix(locator, p) {
			return true
		}
	}
	return false
}

// atoiPositive converts a digit string already validated by the pattern.
// Overflowing values yield 0, which matches no page.
func atoiPositive(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
		if n > 1<<30 {
			return 0
		}
	}
	return n
}

// isRefusal reports whether the model produced the refusal phrase.
func isRefusal(text string) bool {
	return strings.Contains(lexical.Fold(text), refusalMarker)
}

// validation is the verdict on one generated text.
type validation struct {
	citations []domain.Citation
	refused   bool
	violation *domain.GroundingViolation
}

// validateCitations maps every tag in text to a supplied chunk. A text is
// grounded only if it carries at least one tag and every tag resolves.
func validateCitations(provider, text string, supplied []domain.RetrievedChunk) validation {
	if isRefusal(text) {
		return validation{refused: true}
	}
	if strings.TrimSpace(text) == "" {
		return validation{violation: &domain.GroundingViolation{Provider: provider, Reason: "empty answer"}}
	}

	tags, malformed := parseCitations(text)
	if len(malformed) > 0 {
		return validation{violation: &domain.GroundingViolation{
			Provider: provider, Tag: malformed[0], Reason: "malformed citation",
		}}
	}
	if len(tags) == 0 {
		return validation{violation: &domain.GroundingViolation{Provider: provider, Reason: "answer has no citations"}}
	}

	seen := make(map[string]bool)
	citations := make([]domain.Citation, 0, len(tags))
	for _, tag := range tags {
		chunk, ok := resolveTag(tag, supplied)
		if !ok {
			return validation{violation: &domain.GroundingViolation{
				Provider: provider, Tag: tag.raw, Reason: "citation does not match any supplied chunk",
			}}
		}
		if seen[chunk.ChunkID] {
			continue
		}
		seen[chunk.ChunkID] = true
		citations = append(citations, domain.Citation{
			DocumentTitle: chunk.DocumentTitle,
			Locator:       chunk.Locator,
			SourceURL:     chunk.SourceURL,
			DocumentID:    chunk.DocumentID,
			ChunkID:       chunk.ChunkID,
		})
	}
	return validation{citations: citations}
}

// resolveTag returns the first supplied chunk with the tag's title and page.
func resolveTag(tag citationTagRef, supplied []domain.RetrievedChunk) (domain.RetrievedChunk, bool) {
	for _, c := range supplied {
		if strings.TrimSpace(c.DocumentTitle) == tag.title && c.Chunk.Page == tag.page {
			return c, true
		}
	}
	return domain.RetrievedChunk{}, false
}
