package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// EmbeddingProvider identifies the embedding function used for the index.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderHashing is the built-in deterministic feature-hashing embedder.
	EmbeddingProviderHashing EmbeddingProvider = "hashing"

	// EmbeddingProviderOpenAI is the OpenAI embeddings API.
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"

	// EmbeddingProviderOllama is a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"
)

// IsValid returns true if the embedding provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderHashing, EmbeddingProviderOpenAI, EmbeddingProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingProviderOpenAI
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// ProviderKind identifies the backend family of a generation provider.
type ProviderKind string

// Available generation provider kinds.
const (
	// ProviderKindOpenAI is the OpenAI chat completions API (ChatGPT).
	ProviderKindOpenAI ProviderKind = "openai"

	// ProviderKindDeepSeek is DeepSeek's OpenAI-compatible API.
	ProviderKindDeepSeek ProviderKind = "deepseek"

	// ProviderKindGemini is Google's Generative Language API.
	ProviderKindGemini ProviderKind = "gemini"

	// ProviderKindAnthropic is the Anthropic messages API.
	ProviderKindAnthropic ProviderKind = "anthropic"

	// ProviderKindOllama is a local Ollama instance.
	ProviderKindOllama ProviderKind = "ollama"
)

// IsValid returns true if the provider kind is recognised.
func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderKindOpenAI, ProviderKindDeepSeek, ProviderKindGemini, ProviderKindAnthropic, ProviderKindOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this kind needs an API key.
func (k ProviderKind) RequiresAPIKey() bool {
	return k != ProviderKindOllama
}

// DefaultAPIKeyEnv returns the environment variable conventionally holding the key.
func (k ProviderKind) DefaultAPIKeyEnv() string {
	switch k {
	case ProviderKindOpenAI:
		return "OPENAI_API_KEY"
	case ProviderKindDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderKindGemini:
		return "GEMINI_API_KEY"
	case ProviderKindAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// String returns the string representation.
func (k ProviderKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the kind.
func (k ProviderKind) Description() string {
	switch k {
	case ProviderKindOpenAI:
		return "OpenAI ChatGPT (cloud)"
	case ProviderKindDeepSeek:
		return "DeepSeek (cloud, OpenAI-compatible)"
	case ProviderKindGemini:
		return "Google Gemini (cloud)"
	case ProviderKindAnthropic:
		return "Anthropic (cloud)"
	case ProviderKindOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// DefaultProviderModels returns the default model for each provider kind.
func DefaultProviderModels() map[ProviderKind]string {
	return map[ProviderKind]string{
		ProviderKindOpenAI:    "gpt-4o-mini",
		ProviderKindDeepSeek:  "deepseek-chat",
		ProviderKindGemini:    "gemini-1.5-flash",
		ProviderKindAnthropic: "claude-3-5-haiku-latest",
		ProviderKindOllama:    "llama3.2",
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider EmbeddingProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size. Zero lets the provider decide.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ChunkingSettings controls how documents are split. Units are characters.
type ChunkingSettings struct {
	Size    int
	Overlap int
}

// Validate checks that the window can advance.
func (c ChunkingSettings) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap must be in [0, size)", ErrInvalidConfig)
	}
	return nil
}

// RetrievalSettings controls candidate selection.
type RetrievalSettings struct {
	// TopK is the number of candidates retrieved.
	TopK int

	// MinScore is the minimum relevance a candidate needs to be kept.
	MinScore float64

	// Rewrite enables keyword expansion of the query.
	Rewrite bool

	// Rerank enables lexical re-ranking of candidates.
	Rerank bool

	// RerankKeep caps the candidates kept after re-ranking.
	RerankKeep int
}

// ProviderSettings configures one generation provider.
type ProviderSettings struct {
	// ID is the provider's configured name (e.g. "chatgpt").
	ID string

	// Kind selects the backend variant.
	Kind ProviderKind

	// Model is the model name sent to the backend.
	Model string

	// BaseURL overrides the backend endpoint.
	BaseURL string

	// APIKey is the credential. When empty it is read from APIKeyEnv.
	APIKey string

	// APIKeyEnv names the environment variable holding the credential.
	APIKeyEnv string

	// Timeout bounds a single call.
	Timeout time.Duration

	// RequestsPerMinute paces calls client-side. Zero disables pacing.
	RequestsPerMinute int
}

// IsConfigured returns true if the provider can be constructed.
func (p ProviderSettings) IsConfigured() bool {
	if !p.Kind.IsValid() {
		return false
	}
	if p.Kind.RequiresAPIKey() && p.APIKey == "" {
		return false
	}
	return true
}

// AnsweringSettings controls generation.
type AnsweringSettings struct {
	// Mode is the default answer mode.
	Mode AnswerMode

	// Providers lists provider ids in configuration order.
	Providers []string

	// Fallback lets single mode try the next provider after a ProviderError.
	Fallback bool

	// Temperature is passed to every provider.
	Temperature float64

	// MaxTokens caps generated tokens.
	MaxTokens int

	// SuggestedOffice accompanies refusals.
	SuggestedOffice string
}

// EvaluationSettings controls batch evaluation.
type EvaluationSettings struct {
	// Concurrency bounds in-flight questions.
	Concurrency int

	// SemanticThreshold is the token-overlap score counted as a semantic match.
	SemanticThreshold float64
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	Chunking   ChunkingSettings
	Retrieval  RetrievalSettings
	Answering  AnsweringSettings
	Providers  []ProviderSettings
	Evaluation EvaluationSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The default embedder runs offline; cloud providers still need API keys.
func DefaultAppSettings() AppSettings {
	models := DefaultProviderModels()
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingProviderHashing,
			Model:      "hash-v1",
			Dimensions: 384,
		},
		Chunking: ChunkingSettings{
			Size:    850,
			Overlap: 150,
		},
		Retrieval: RetrievalSettings{
			TopK:       8,
			MinScore:   0.35,
			Rewrite:    true,
			Rerank:     false,
			RerankKeep: 5,
		},
		Answering: AnsweringSettings{
			Mode:            AnswerModeSingle,
			Providers:       []string{"chatgpt", "deepseek", "gemini"},
			Temperature:     0.1,
			MaxTokens:       1500,
			SuggestedOffice: DefaultSuggestedOffice,
		},
		Providers: []ProviderSettings{
			{ID: "chatgpt", Kind: ProviderKindOpenAI, Model: models[ProviderKindOpenAI], Timeout: 60 * time.Second},
			{ID: "deepseek", Kind: ProviderKindDeepSeek, Model: models[ProviderKindDeepSeek], Timeout: 60 * time.Second},
			{ID: "gemini", Kind: ProviderKindGemini, Model: models[ProviderKindGemini], Timeout: 60 * time.Second},
		},
		Evaluation: EvaluationSettings{
			Concurrency:       2,
			SemanticThreshold: 0.5,
		},
	}
}

// Provider returns the settings of a configured provider by id.
func (s *AppSettings) Provider(id string) (ProviderSettings, bool) {
	for _, p := range s.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderSettings{}, false
}

// Validate checks settings that would otherwise fail deep inside a query.
func (s *AppSettings) Validate() error {
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, s.Embedding.Provider)
	}
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if s.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be at least 1", ErrInvalidConfig)
	}
	if !s.Answering.Mode.IsValid() {
		return fmt.Errorf("%w: unknown answer mode %q", ErrInvalidConfig, s.Answering.Mode)
	}
	seen := make(map[string]bool, len(s.Providers))
	for _, p := range s.Providers {
		if !p.Kind.IsValid() {
			return fmt.Errorf("%w: provider %s has unknown kind %q", ErrInvalidConfig, p.ID, p.Kind)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: provider %s defined twice", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
	}
	for _, id := range s.Answering.Providers {
		if !seen[id] {
			return fmt.Errorf("%w: answering.providers references %q", ErrProviderUnknown, id)
		}
	}
	return nil
}
