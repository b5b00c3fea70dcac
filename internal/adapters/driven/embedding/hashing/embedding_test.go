package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestEmbed_DeterministicAndNormalised(t *testing.T) {
	s := NewEmbeddingService(Config{Dimensions: 128})
	ctx := context.Background()

	a, err := s.Embed(ctx, "Los requisitos de matrícula para estudiantes nuevos")
	require.NoError(t, err)
	b, err := s.Embed(ctx, "Los requisitos de matrícula para estudiantes nuevos")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 128)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a, a)), 1e-5)
}

func TestEmbed_AccentInsensitive(t *testing.T) {
	s := NewEmbeddingService(Config{})
	ctx := context.Background()

	a, _ := s.Embed(ctx, "titulación")
	b, _ := s.Embed(ctx, "TITULACION")
	assert.Equal(t, a, b)
}

func TestEmbed_RelatedTextScoresHigher(t *testing.T) {
	s := NewEmbeddingService(Config{})
	ctx := context.Background()

	query, _ := s.Embed(ctx, "¿Cuándo es el inicio de clases del primer semestre?")
	related, _ := s.Embed(ctx, "Calendario Académico 2025: el inicio de clases del primer semestre es el 10 de marzo.")
	unrelated, _ := s.Embed(ctx, "Las faltas graves a la convivencia serán sancionadas por el comité de ética.")

	assert.Greater(t, cosine(query, related), 0.35)
	assert.Less(t, cosine(query, unrelated), 0.35)
	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestEmbed_EmptyTextIsZero(t *testing.T) {
	v, err := NewEmbeddingService(Config{Dimensions: 8}).Embed(context.Background(), "¿de la?")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestEmbedBatch(t *testing.T) {
	s := NewEmbeddingService(Config{})
	out, err := s.EmbedBatch(context.Background(), []string{"becas", "aranceles"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	single, _ := s.Embed(context.Background(), "aranceles")
	assert.Equal(t, single, out[1])
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbeddingService(Config{}).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
