package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/regula/internal/core/domain"
)

func TestDocumentService_ListAndGet(t *testing.T) {
	store, index := seedCorpus(t, convivenciaDoc, calendarioDoc)
	svc := NewDocumentService(store, index, nil, nil)
	ctx := context.Background()

	docs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "calendario_2025", docs[0].ID)

	doc, err := svc.Get(ctx, "calendario_2025")
	require.NoError(t, err)
	assert.Equal(t, "Calendario Académico 2025", doc.Title)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_GetPage(t *testing.T) {
	store, index := seedCorpus(t, calendarioDoc)
	svc := NewDocumentService(store, index, nil, nil)
	ctx := context.Background()

	text, err := svc.GetPage(ctx, "calendario_2025", 2)
	require.NoError(t, err)
	assert.Equal(t, calendarioDoc.pages[1], text)

	_, err = svc.GetPage(ctx, "calendario_2025", 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentService_GetDetails(t *testing.T) {
	store, index := seedCorpus(t, calendarioDoc)
	svc := NewDocumentService(store, index, nil, nil)

	details, err := svc.GetDetails(context.Background(), "calendario_2025")
	require.NoError(t, err)
	assert.Equal(t, "calendario_2025", details.ID)
	assert.Equal(t, 2, details.Pages)
	assert.Equal(t, 2, details.Chunks)
	assert.Equal(t, "https://example.edu/calendario_2025", details.SourceURL)
	assert.Positive(t, details.Characters)
}

func TestDocumentService_Remove(t *testing.T) {
	store, index := seedCorpus(t, convivenciaDoc, calendarioDoc)
	indexStore := memory.NewIndexStore()
	svc := NewDocumentService(store, index, indexStore, nil)
	ctx := context.Background()
	before := index.Len()

	require.NoError(t, svc.Remove(ctx, "calendario_2025"))

	_, err := svc.Get(ctx, "calendario_2025")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, before-2, index.Len())
	for _, e := range index.Snapshot().Entries {
		assert.NotContains(t, e.ChunkID, "calendario_2025")
	}

	snap, err := indexStore.LoadIndex(ctx, index.Stamp())
	require.NoError(t, err)
	assert.Len(t, snap.Entries, index.Len())

	assert.ErrorIs(t, svc.Remove(ctx, "calendario_2025"), domain.ErrNotFound)
}

func TestDocumentService_RemoveRefusesStaleIndex(t *testing.T) {
	store, index := seedCorpus(t, convivenciaDoc, calendarioDoc)
	indexStore := memory.NewIndexStore()
	ctx := context.Background()
	require.NoError(t, indexStore.SaveIndex(ctx, index.Snapshot()))
	before := index.Len()

	svc := NewDocumentService(store, index, indexStore, &topicEmbedder{model: "topic-v2"})
	err := svc.Remove(ctx, "calendario_2025")

	var mismatch *domain.IndexVersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, topicStamp, mismatch.Stored)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)

	_, err = svc.Get(ctx, "calendario_2025")
	assert.NoError(t, err, "document is kept")
	assert.Equal(t, before, index.Len())
	snap, err := indexStore.LoadIndex(ctx, topicStamp)
	require.NoError(t, err)
	assert.Len(t, snap.Entries, before, "stored vectors are kept")
}

func TestDocumentService_RemoveWithMatchingEmbedder(t *testing.T) {
	store, index := seedCorpus(t, convivenciaDoc)
	svc := NewDocumentService(store, index, memory.NewIndexStore(), &topicEmbedder{})

	require.NoError(t, svc.Remove(context.Background(), convivenciaDoc.id))
	assert.Equal(t, 0, index.Len())
}

func TestDocumentService_RemoveWithoutIndex(t *testing.T) {
	store, _ := seedCorpus(t, convivenciaDoc)
	svc := NewDocumentService(store, nil, nil, nil)

	require.NoError(t, svc.Remove(context.Background(), convivenciaDoc.id))
	docs, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}
