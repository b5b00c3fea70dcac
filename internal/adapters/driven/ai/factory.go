// Package ai provides factory functions for creating embedding and
// generation provider adapters from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/regula/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/regula/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/regula/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/regula/internal/adapters/driven/llm"
	anthropicllm "github.com/custodia-labs/regula/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/regula/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/regula/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/regula/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// ProviderSet holds the generation providers built from settings.
type ProviderSet struct {
	// Adapters are the usable providers in configuration order.
	Adapters []driven.ProviderAdapter

	// Unavailable maps provider ids that could not be built to the reason.
	Unavailable map[string]string
}

// Close releases all adapters.
func (s *ProviderSet) Close() {
	for _, a := range s.Adapters {
		a.Close()
	}
}

// IDs returns the ids of the usable providers.
func (s *ProviderSet) IDs() []string {
	ids := make([]string, len(s.Adapters))
	for i, a := range s.Adapters {
		ids[i] = a.ID()
	}
	return ids
}

// CreateEmbeddingService creates the embedding function selected by settings.
func CreateEmbeddingService(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrEmbeddingUnavailable, settings.Provider)
	}

	switch settings.Provider {
	case domain.EmbeddingProviderHashing:
		return hashing.NewEmbeddingService(hashing.Config{
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	case domain.EmbeddingProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	case domain.EmbeddingProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q",
			domain.ErrEmbeddingUnavailable, settings.Provider)
	}
}

// CreateAndValidateEmbeddingService creates the embedding function and checks
// it is reachable.
func CreateAndValidateEmbeddingService(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateProvider builds one generation provider.
func CreateProvider(ps domain.ProviderSettings) (driven.ProviderAdapter, error) {
	if !ps.Kind.IsValid() {
		return nil, fmt.Errorf("%w: provider %s has unknown kind %q", domain.ErrInvalidConfig, ps.ID, ps.Kind)
	}
	if ps.Kind.RequiresAPIKey() && ps.APIKey == "" {
		env := ps.APIKeyEnv
		if env == "" {
			env = ps.Kind.DefaultAPIKeyEnv()
		}
		return nil, fmt.Errorf("%w: provider %s has no API key (set %s)", domain.ErrInvalidConfig, ps.ID, env)
	}

	cfg := llm.Config{
		ID:                ps.ID,
		Model:             ps.Model,
		BaseURL:           ps.BaseURL,
		APIKey:            ps.APIKey,
		Timeout:           ps.Timeout,
		RequestsPerMinute: ps.RequestsPerMinute,
	}

	switch ps.Kind {
	case domain.ProviderKindOpenAI:
		return openaillm.New(cfg)
	case domain.ProviderKindDeepSeek:
		return openaillm.NewDeepSeek(cfg)
	case domain.ProviderKindGemini:
		return geminillm.New(cfg)
	case domain.ProviderKindAnthropic:
		return anthropicllm.New(cfg)
	case domain.ProviderKindOllama:
		return ollamallm.New(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unsupported provider kind %q", domain.ErrInvalidConfig, ps.Kind)
	}
}

// CreateProviders builds every configured provider. Providers that cannot be
// built are reported in Unavailable instead of failing the whole set.
func CreateProviders(providers []domain.ProviderSettings) *ProviderSet {
	set := &ProviderSet{Unavailable: make(map[string]string)}
	for _, ps := range providers {
		adapter, err := CreateProvider(ps)
		if err != nil {
			set.Unavailable[ps.ID] = err.Error()
			continue
		}
		set.Adapters = append(set.Adapters, adapter)
	}
	return set
}
