package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/core/domain"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"application/pdf"}, New().SupportedMIMETypes())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_PerPage(t *testing.T) {
	n := NewWithExtractor(func(_ []byte) ([]string, error) {
		return []string{"Artículo 1. Matrícula\nPágina 1", "", "Artículo 2. Aranceles"}, nil
	})
	raw := &domain.RawDocument{DocID: "reg", Title: "Reglamento de Matrícula", MIMEType: "application/pdf"}

	doc, err := n.Normalise(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, doc.Pages, 2)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, "Artículo 1. Matrícula", doc.PageText(doc.Pages[0]))
	assert.Equal(t, 3, doc.Pages[1].Number)
}

func TestNormalise_ScannedDocument(t *testing.T) {
	n := NewWithExtractor(func(_ []byte) ([]string, error) {
		return []string{"", "  "}, nil
	})

	_, err := n.Normalise(context.Background(), &domain.RawDocument{DocID: "scan"})

	var ie *domain.IngestionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "scan", ie.DocumentID)
}

func TestNormalise_ReaderFailure(t *testing.T) {
	n := NewWithExtractor(func(_ []byte) ([]string, error) {
		return nil, errors.New("xref table not found")
	})

	_, err := n.Normalise(context.Background(), &domain.RawDocument{DocID: "broken"})

	var ie *domain.IngestionError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, err.Error(), "xref table not found")
}

func TestExtractPages_NotAPDF(t *testing.T) {
	_, err := extractPages([]byte("plain text, not a pdf"))
	assert.Error(t, err)
}
