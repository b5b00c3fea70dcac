package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/core/domain"
)

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTags  []citationTagRef
		malformed int
	}{
		{
			name: "single tag",
			text: "Inicia en marzo [Calendario Académico 2025, página 2].",
			wantTags: []citationTagRef{
				{raw: "[Calendario Académico 2025, página 2]", title: "Calendario Académico 2025", page: 2},
			},
		},
		{
			name: "capitalised locator",
			text: "[Reglamento de Convivencia, Página 14]",
			wantTags: []citationTagRef{
				{raw: "[Reglamento de Convivencia, Página 14]", title: "Reglamento de Convivencia", page: 14},
			},
		},
		{
			name: "two tags",
			text: "A [Doc A, página 1] y B [Doc B, página 3]",
			wantTags: []citationTagRef{
				{raw: "[Doc A, página 1]", title: "Doc A", page: 1},
				{raw: "[Doc B, página 3]", title: "Doc B", page: 3},
			},
		},
		{
			name: "title with comma",
			text: "[Reglamento de Régimen de Estudios, Pregrado, página 5]",
			wantTags: []citationTagRef{
				{raw: "[Reglamento de Régimen de Estudios, Pregrado, página 5]", title: "Reglamento de Régimen de Estudios, Pregrado", page: 5},
			},
		},
		{name: "unrelated brackets are ignored", text: "Ver nota [1] y [sic]."},
		{name: "english locator", text: "[Student Handbook, page 3]", malformed: 1},
		{name: "abbreviated locator", text: "[Reglamento, pág. 3]", malformed: 1},
		{name: "page range", text: "[Reglamento, páginas 3-4]", malformed: 1},
		{name: "leading zero", text: "[Reglamento, página 03]", malformed: 1},
		{name: "missing comma", text: "[Reglamento página 3]", malformed: 1},
		{name: "nested bracket", text: "[Reglamento [anexo], página 3]", malformed: 1},
		{name: "line break inside", text: "[Reglamento,\npágina 3]", malformed: 1},
		{name: "unterminated", text: "según [Reglamento, página 3", malformed: 1},
		{name: "short page locator", text: "[Calendario Académico 2025, p. 9]", malformed: 1},
		{name: "article locator", text: "[Reglamento de Convivencia, Artículo 12]", malformed: 1},
		{name: "section locator", text: "[Estatuto, sección 4]", malformed: 1},
		{name: "chapter locator", text: "[Estatuto, capítulo II]", malformed: 1},
		{name: "bare number locator", text: "[Estatuto, 4]", malformed: 1},
		{name: "prose list is ignored", text: "Opciones [a, b] o [sí, no]."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, malformed := parseCitations(tt.text)
			assert.Equal(t, tt.wantTags, tags)
			assert.Len(t, malformed, tt.malformed)
		})
	}
}

func TestValidateCitations(t *testing.T) {
	supplied := []domain.RetrievedChunk{
		{
			Chunk: domain.Chunk{Page: 2}, ChunkID: "cal_p2_c0", DocumentID: "cal",
			DocumentTitle: "Calendario Académico 2025", Locator: "página 2",
		},
		{
			Chunk: domain.Chunk{Page: 2}, ChunkID: "cal_p2_c1", DocumentID: "cal",
			DocumentTitle: "Calendario Académico 2025", Locator: "página 2",
		},
		{
			Chunk: domain.Chunk{Page: 7}, ChunkID: "conv_p7_c0", DocumentID: "conv",
			DocumentTitle: " Reglamento de Convivencia ", Locator: "página 7",
		},
	}

	t.Run("resolved tags become citations from chunks", func(t *testing.T) {
		v := validateCitations("p", "X [Calendario Académico 2025, página 2]. Y [Reglamento de Convivencia, página 7]. "+
			"Z [Calendario Académico 2025, página 2].", supplied)
		require.Nil(t, v.violation)
		require.Len(t, v.citations, 2)
		assert.Equal(t, "cal_p2_c0", v.citations[0].ChunkID)
		assert.Equal(t, "conv_p7_c0", v.citations[1].ChunkID)
		assert.Equal(t, " Reglamento de Convivencia ", v.citations[1].DocumentTitle)
	})

	t.Run("title must match exactly", func(t *testing.T) {
		v := validateCitations("p", "X [calendario académico 2025, página 2]", supplied)
		require.NotNil(t, v.violation)
		assert.Equal(t, "[calendario académico 2025, página 2]", v.violation.Tag)
	})

	t.Run("fabricated locator beside a valid tag", func(t *testing.T) {
		v := validateCitations("p", "Inicia en marzo [Calendario Académico 2025, página 2]. "+
			"Ver [Calendario Académico 2025, p. 9].", supplied)
		require.NotNil(t, v.violation)
		assert.Equal(t, "[Calendario Académico 2025, p. 9]", v.violation.Tag)
		assert.Equal(t, "malformed citation", v.violation.Reason)
		assert.Empty(t, v.citations)
	})

	t.Run("refusal wins over tags", func(t *testing.T) {
		v := validateCitations("p", domain.RefusalMessage+" [Calendario Académico 2025, página 2]", supplied)
		assert.True(t, v.refused)
		assert.Empty(t, v.citations)
	})

	t.Run("refusal without accents", func(t *testing.T) {
		assert.True(t, isRefusal("No encontre informacion sobre esto en la normativa."))
	})
}
