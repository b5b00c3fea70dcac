package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/adapters/driven/vectorindex/flat"
	"github.com/custodia-labs/regula/internal/core/domain"
)

func TestRetriever_Retrieve(t *testing.T) {
	store, index := seedCorpus(t, convivenciaDoc, calendarioDoc)
	r := NewRetriever(index, &topicEmbedder{}, store, nil)

	result, err := r.Retrieve(context.Background(), "sanciones por conducta y convivencia", 3)
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "reglamento_convivencia_p1_c0", result[0].ChunkID)
	for i := 1; i < len(result); i++ {
		assert.GreaterOrEqual(t, result[i-1].Score, result[i].Score)
	}

	one, err := r.Retrieve(context.Background(), "convivencia", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestRetriever_InvalidK(t *testing.T) {
	store, index := seedCorpus(t, calendarioDoc)
	r := NewRetriever(index, &topicEmbedder{}, store, nil)

	_, err := r.Retrieve(context.Background(), "calendario", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetriever_EmptyIndex(t *testing.T) {
	store, _ := seedCorpus(t)
	index, err := flat.New(topicStamp)
	require.NoError(t, err)
	r := NewRetriever(index, &topicEmbedder{}, store, nil)

	result, err := r.Retrieve(context.Background(), "calendario", 5)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestRetriever_StampMismatch(t *testing.T) {
	store, index := seedCorpus(t, calendarioDoc)
	r := NewRetriever(index, &topicEmbedder{model: "other"}, store, nil)

	_, err := r.Retrieve(context.Background(), "calendario", 5)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)
	assert.ErrorIs(t, r.CheckStamp(), domain.ErrEmbeddingMismatch)
}

func TestRetriever_EmbedError(t *testing.T) {
	store, index := seedCorpus(t, calendarioDoc)
	boom := errors.New("boom")
	r := NewRetriever(index, &topicEmbedder{err: boom}, store, nil)

	_, err := r.Retrieve(context.Background(), "calendario", 5)
	assert.ErrorIs(t, err, boom)
}

func TestRetriever_HydrateSkipsMissingChunks(t *testing.T) {
	store, index := seedCorpus(t, calendarioDoc)
	r := NewRetriever(index, &topicEmbedder{}, store, nil)

	chunks, err := r.Hydrate(context.Background(), domain.RetrievalResult{
		{ChunkID: "calendario_2025_p2_c0", Score: 0.9},
		{ChunkID: "gone_p1_c0", Score: 0.8},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	c := chunks[0]
	assert.Equal(t, "calendario_2025", c.DocumentID)
	assert.Equal(t, "Calendario Académico 2025", c.DocumentTitle)
	assert.Equal(t, "página 2", c.Locator)
	assert.InDelta(t, 0.9, c.Score, 1e-9)
	assert.Equal(t, c.Chunk.Text, c.Text)
}

// inventingReranker adds a chunk that was never retrieved.
type inventingReranker struct{}

func (inventingReranker) Rerank(_ string, candidates []domain.RetrievedChunk) []domain.RetrievedChunk {
	out := append([]domain.RetrievedChunk{{ChunkID: "invented"}}, candidates...)
	return append(out, candidates[0])
}

func TestRetriever_RerankNeverIntroducesChunks(t *testing.T) {
	r := NewRetriever(nil, nil, nil, inventingReranker{})
	in := []domain.RetrievedChunk{{ChunkID: "a"}, {ChunkID: "b"}}

	out := r.Rerank("q", in)
	assert.Equal(t, []string{"a", "b"}, chunkIDs(out))
}
