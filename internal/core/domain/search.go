package domain

import "fmt"

// IndexStamp identifies the embedding function a vector index was built with.
// An index may only be queried with vectors from the same function.
type IndexStamp struct {
	// EmbeddingModel is the versioned embedding model identifier.
	EmbeddingModel string

	// Dimensions is the vector length.
	Dimensions int
}

// String renders the stamp as "model/dims".
func (s IndexStamp) String() string {
	return fmt.Sprintf("%s/%d", s.EmbeddingModel, s.Dimensions)
}

// IsZero reports whether the stamp is unset.
func (s IndexStamp) IsZero() bool {
	return s.EmbeddingModel == "" && s.Dimensions == 0
}

// IndexEntry pairs a chunk id with its embedding.
// The index owns no document text.
type IndexEntry struct {
	ChunkID string
	Vector  []float32
}

// IndexSnapshot is the durable form of a vector index.
// Entries are kept in insertion order.
type IndexSnapshot struct {
	Stamp   IndexStamp
	Entries []IndexEntry
}

// ScoredChunk is one ranked retrieval hit.
type ScoredChunk struct {
	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// Score is the similarity (inner product of normalised vectors).
	Score float64 `json:"score"`
}

// RetrievalResult is an ordered candidate list in descending score order.
type RetrievalResult []ScoredChunk

// IDs returns the chunk ids in rank order.
func (r RetrievalResult) IDs() []string {
	ids := make([]string, len(r))
	for i, h := range r {
		ids[i] = h.ChunkID
	}
	return ids
}

// Above returns the hits scoring at least min, preserving order.
func (r RetrievalResult) Above(min float64) RetrievalResult {
	out := make(RetrievalResult, 0, len(r))
	for _, h := range r {
		if h.Score >= min {
			out = append(out, h)
		}
	}
	return out
}

// RetrievedChunk is a hydrated retrieval hit: the chunk, its document
// provenance and its score.
type RetrievedChunk struct {
	Chunk         Chunk   `json:"-"`
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	SourceURL     string  `json:"source_url,omitempty"`
	Locator       string  `json:"locator"`
	Section       string  `json:"section,omitempty"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
}
