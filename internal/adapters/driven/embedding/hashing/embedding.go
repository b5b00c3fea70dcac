// Package hashing provides a deterministic, offline embedding function.
//
// Text is folded and tokenised, then unigrams, adjacent-token bigrams and
// five-letter stems are hashed into a fixed number of signed buckets and
// L2-normalised. The same text always yields the same vector, so indexes
// rebuild reproducibly and tests need no network.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/lexical"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "hash-v1"
	DefaultDimensions = 384
)

const stemLength = 5

// Config holds configuration for the hashing embedder.
type Config struct {
	// Model is the version stamp (default: hash-v1). Change it whenever the
	// feature extraction changes so stale indexes are rejected.
	Model string

	// Dimensions is the number of hash buckets (default: 384).
	Dimensions int
}

// EmbeddingService embeds text by feature hashing.
type EmbeddingService struct {
	model      string
	dimensions int
}

// NewEmbeddingService creates a hashing embedder.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed generates a vector embedding for the given text.
// Text without content words embeds to the zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, s.dimensions)
	tokens := lexical.Tokens(text)
	for i, tok := range tokens {
		s.add(vec, "u:"+tok, 1)
		if r := []rune(tok); len(r) > stemLength {
			s.add(vec, "s:"+string(r[:stemLength]), 0.5)
		}
		if i > 0 {
			s.add(vec, "b:"+tokens[i-1]+"_"+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, s.dimensions)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (s *EmbeddingService) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(s.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the feature-extraction version.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds; the embedder is local.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
