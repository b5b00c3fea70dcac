package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/regula/internal/core/domain"
)

func TestKeywordExpansionRewriter(t *testing.T) {
	r := NewKeywordExpansionRewriter()

	tests := map[string]string{
		"¿Cuáles son los requisitos para la matrícula?": "¿Cuáles son los requisitos para la matrícula? matricula inscripción",
		"  Proceso de TITULACION  ":                     "Proceso de TITULACION titulacion graduación tesis",
		"calendario y beneficios":                       "calendario y beneficios beneficios becas ayudas calendario fechas académico",
		"¿Qué dice el reglamento de convivencia?":       "¿Qué dice el reglamento de convivencia?",
		"matriculados":                                  "matriculados",
	}
	for in, want := range tests {
		assert.Equal(t, want, r.Rewrite(in), in)
	}
}

func TestKeywordExpansionRewriter_IsPure(t *testing.T) {
	r := NewKeywordExpansionRewriter()
	q := "apelación de notas"
	assert.Equal(t, r.Rewrite(q), r.Rewrite(q))
}

func TestNoopStages(t *testing.T) {
	assert.Equal(t, "x", NoopRewriter{}.Rewrite("x"))
	in := []domain.RetrievedChunk{{ChunkID: "a"}, {ChunkID: "b"}}
	assert.Equal(t, in, NoopReranker{}.Rerank("q", in))
}

func TestLexicalReranker(t *testing.T) {
	candidates := []domain.RetrievedChunk{
		{ChunkID: "a", Score: 0.80, Text: "Normas generales de la universidad."},
		{ChunkID: "b", Score: 0.75, Text: "El proceso de matrícula exige pagar el arancel."},
		{ChunkID: "c", Score: 0.40, Text: "Sin relación."},
	}

	out := LexicalReranker{Keep: 2}.Rerank("matrícula arancel", candidates)
	assert.Equal(t, []string{"b", "a"}, chunkIDs(out))
	assert.InDelta(t, 0.75, out[0].Score, 1e-9, "scores are not rewritten")

	all := LexicalReranker{}.Rerank("matrícula arancel", candidates)
	assert.Len(t, all, 3)
}

func TestLexicalReranker_StableOnTies(t *testing.T) {
	candidates := []domain.RetrievedChunk{
		{ChunkID: "first", Score: 0.5, Text: "x"},
		{ChunkID: "second", Score: 0.5, Text: "x"},
	}
	out := LexicalReranker{}.Rerank("y", candidates)
	assert.Equal(t, []string{"first", "second"}, chunkIDs(out))
}

func chunkIDs(chunks []domain.RetrievedChunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
	}
	return ids
}
