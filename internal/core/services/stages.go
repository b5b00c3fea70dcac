package services

import (
	"sort"
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/lexical"
)

// QueryRewriter turns a user question into a retrieval-optimised query.
// Implementations are pure: no side effects and no network calls.
type QueryRewriter interface {
	Rewrite(query string) string
}

// Reranker reorders hydrated candidates. It may drop candidates but must
// never introduce one that was not in its input.
type Reranker interface {
	Rerank(query string, candidates []domain.RetrievedChunk) []domain.RetrievedChunk
}

// NoopRewriter returns the query unchanged.
type NoopRewriter struct{}

// Rewrite implements QueryRewriter.
func (NoopRewriter) Rewrite(query string) string { return query }

// NoopReranker returns the candidates unchanged.
type NoopReranker struct{}

// Rerank implements Reranker.
func (NoopReranker) Rerank(_ string, candidates []domain.RetrievedChunk) []domain.RetrievedChunk {
	return candidates
}

// keywordExpansion is one trigger word and the terms appended when it occurs.
type keywordExpansion struct {
	keyword   string
	expansion string
}

// defaultExpansions lists the topics students ask about most, with the
// vocabulary the regulations use for them.
var defaultExpansions = []keywordExpansion{
	{"matricula", "matricula inscripción"},
	{"titulacion", "titulacion graduación tesis"},
	{"apelacion", "apelacion recurso reclamación"},
	{"beneficios", "beneficios becas ayudas"},
	{"calendario", "calendario fechas académico"},
}

// KeywordExpansionRewriter appends related terms for known topic keywords.
// Matching ignores case and accents.
type KeywordExpansionRewriter struct {
	expansions []keywordExpansion
}

// NewKeywordExpansionRewriter creates a rewriter with the built-in table.
func NewKeywordExpansionRewriter() *KeywordExpansionRewriter {
	return &KeywordExpansionRewriter{expansions: defaultExpansions}
}

// Rewrite implements QueryRewriter.
func (r *KeywordExpansionRewriter) Rewrite(query string) string {
	query = strings.TrimSpace(query)
	words := make(map[string]bool)
	for _, w := range lexical.Words(query) {
		words[w] = true
	}

	var b strings.Builder
	b.WriteString(query)
	for _, e := range r.expansions {
		if words[e.keyword] {
			b.WriteByte(' ')
			b.WriteString(e.expansion)
		}
	}
	return b.String()
}

// lexicalWeight is the share of the blended score taken by term overlap.
const lexicalWeight = 0.3

// LexicalReranker blends vector similarity with query term coverage of the
// chunk text and keeps the best Keep candidates. Scores are left untouched.
type LexicalReranker struct {
	Keep int
}

// Rerank implements Reranker.
func (r LexicalReranker) Rerank(query string, candidates []domain.RetrievedChunk) []domain.RetrievedChunk {
	type ranked struct {
		chunk domain.RetrievedChunk
		score float64
	}
	items := make([]ranked, len(candidates))
	for i, c := range candidates {
		items[i] = ranked{
			chunk: c,
			score: (1-lexicalWeight)*c.Score + lexicalWeight*lexical.Coverage(query, c.Text),
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	n := len(items)
	if r.Keep > 0 && r.Keep < n {
		n = r.Keep
	}
	out := make([]domain.RetrievedChunk, n)
	for i := range out {
		out[i] = items[i].chunk
	}
	return out
}
