package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/logger"
)

// Retriever ranks chunks for a query using the vector index.
type Retriever struct {
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	docStore driven.DocumentStore
	reranker Reranker
}

// NewRetriever creates a retriever. A nil reranker disables re-ranking.
func NewRetriever(
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	docStore driven.DocumentStore,
	reranker Reranker,
) *Retriever {
	if reranker == nil {
		reranker = NoopReranker{}
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		docStore: docStore,
		reranker: reranker,
	}
}

// CheckStamp fails with ErrEmbeddingMismatch when the embedder is not the
// function the index was built with.
func (r *Retriever) CheckStamp() error {
	return checkStamp(r.embedder, r.index.Stamp())
}

func checkStamp(embedder driven.EmbeddingService, stamp domain.IndexStamp) error {
	if embedder.ModelName() != stamp.EmbeddingModel || embedder.Dimensions() != stamp.Dimensions {
		return fmt.Errorf("%w: index %s, embedder %s/%d",
			domain.ErrEmbeddingMismatch, stamp, embedder.ModelName(), embedder.Dimensions())
	}
	return nil
}

// Retrieve embeds the query and returns up to k candidates.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (domain.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1", domain.ErrInvalidInput)
	}
	if err := r.CheckStamp(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievalResult{}, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	result, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Retrieved %d candidates (k=%d)", len(result), k)
	return result, nil
}

// Hydrate loads chunk text and document provenance for ranked hits.
// Hits whose chunk is no longer stored are skipped.
func (r *Retriever) Hydrate(ctx context.Context, result domain.RetrievalResult) ([]domain.RetrievedChunk, error) {
	docs := make(map[string]*domain.Document)
	out := make([]domain.RetrievedChunk, 0, len(result))

	for _, hit := range result {
		chunk, err := r.docStore.GetChunk(ctx, hit.ChunkID)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Indexed chunk %s is missing from the document store", hit.ChunkID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load chunk %s: %w", hit.ChunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = r.docStore.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("load document %s: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		out = append(out, domain.RetrievedChunk{
			Chunk:         *chunk,
			ChunkID:       chunk.ID,
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			SourceURL:     doc.SourceURL,
			Locator:       chunk.Locator(),
			Section:       chunk.Section,
			Score:         hit.Score,
			Text:          chunk.Text,
		})
	}
	return out, nil
}

// Rerank applies the configured reranker. Candidates the reranker invents
// are dropped.
func (r *Retriever) Rerank(query string, candidates []domain.RetrievedChunk) []domain.RetrievedChunk {
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.ChunkID] = true
	}

	reranked := r.reranker.Rerank(query, candidates)
	out := make([]domain.RetrievedChunk, 0, len(reranked))
	for _, c := range reranked {
		if !allowed[c.ChunkID] {
			logger.Warn("Reranker introduced unknown chunk %s; dropped", c.ChunkID)
			continue
		}
		allowed[c.ChunkID] = false
		out = append(out, c)
	}
	return out
}
