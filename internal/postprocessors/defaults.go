package postprocessors

import (
	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/postprocessors/chunker"
	"github.com/custodia-labs/regula/internal/postprocessors/sections"
)

// DefaultProcessors is the processor order used for ingestion.
var DefaultProcessors = []string{"chunker", "sections"}

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("sections", func(_ map[string]any) (driven.PostProcessor, error) {
		return sections.New(), nil
	})
}

// NewDefaultPipeline builds the ingestion pipeline for the chunking settings.
func NewDefaultPipeline(cs domain.ChunkingSettings) (*Pipeline, error) {
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(DefaultProcessors, map[string]map[string]any{
		"chunker": {"size": cs.Size, "overlap": cs.Overlap},
	})
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - size (int): Characters per chunk (default: 850)
//   - overlap (int): Overlapping characters between chunks (default: 150)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size := getIntFromConfig(cfg, "size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
