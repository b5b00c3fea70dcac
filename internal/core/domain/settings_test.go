package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, EmbeddingProviderHashing, s.Embedding.Provider)
	assert.Equal(t, 8, s.Retrieval.TopK)
	assert.Equal(t, AnswerModeSingle, s.Answering.Mode)
	assert.Equal(t, []string{"chatgpt", "deepseek", "gemini"}, s.Answering.Providers)
	assert.InDelta(t, 0.1, s.Answering.Temperature, 1e-9)
	assert.Equal(t, 1500, s.Answering.MaxTokens)
}

func TestChunkingSettings_Validate(t *testing.T) {
	assert.NoError(t, ChunkingSettings{Size: 10, Overlap: 0}.Validate())
	assert.ErrorIs(t, ChunkingSettings{Size: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, ChunkingSettings{Size: 10, Overlap: 10}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, ChunkingSettings{Size: 10, Overlap: -1}.Validate(), ErrInvalidConfig)
}

func TestAppSettings_Validate(t *testing.T) {
	t.Run("unknown provider in answering order", func(t *testing.T) {
		s := DefaultAppSettings()
		s.Answering.Providers = []string{"chatgpt", "mistral"}
		assert.ErrorIs(t, s.Validate(), ErrProviderUnknown)
	})

	t.Run("duplicate provider id", func(t *testing.T) {
		s := DefaultAppSettings()
		s.Providers = append(s.Providers, ProviderSettings{ID: "chatgpt", Kind: ProviderKindOpenAI})
		assert.ErrorIs(t, s.Validate(), ErrInvalidConfig)
	})

	t.Run("invalid top k", func(t *testing.T) {
		s := DefaultAppSettings()
		s.Retrieval.TopK = 0
		assert.ErrorIs(t, s.Validate(), ErrInvalidConfig)
	})

	t.Run("invalid mode", func(t *testing.T) {
		s := DefaultAppSettings()
		s.Answering.Mode = "vote"
		assert.ErrorIs(t, s.Validate(), ErrInvalidConfig)
	})
}

func TestAppSettings_Provider(t *testing.T) {
	s := DefaultAppSettings()
	p, ok := s.Provider("deepseek")
	require.True(t, ok)
	assert.Equal(t, ProviderKindDeepSeek, p.Kind)

	_, ok = s.Provider("missing")
	assert.False(t, ok)
}

func TestProviderKind(t *testing.T) {
	assert.True(t, ProviderKindGemini.IsValid())
	assert.False(t, ProviderKind("bard").IsValid())
	assert.False(t, ProviderKindOllama.RequiresAPIKey())
	assert.Equal(t, "DEEPSEEK_API_KEY", ProviderKindDeepSeek.DefaultAPIKeyEnv())
	assert.Empty(t, ProviderKindOllama.DefaultAPIKeyEnv())
}

func TestProviderSettings_IsConfigured(t *testing.T) {
	assert.False(t, ProviderSettings{Kind: ProviderKindOpenAI}.IsConfigured())
	assert.True(t, ProviderSettings{Kind: ProviderKindOpenAI, APIKey: "sk"}.IsConfigured())
	assert.True(t, ProviderSettings{Kind: ProviderKindOllama}.IsConfigured())
}
