package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/regula/internal/core/domain"
)

func newTestSettings(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	service.SetEnvLookup(func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})
	return service, store
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service, _ := newTestSettings(nil)

	settings, err := service.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding, settings.Embedding)
	assert.Equal(t, defaults.Chunking, settings.Chunking)
	assert.Equal(t, defaults.Retrieval, settings.Retrieval)
	assert.Equal(t, defaults.Answering, settings.Answering)
	assert.Equal(t, []string{"chatgpt", "deepseek", "gemini"}, providerIDs(settings.Providers))
	assert.Equal(t, "OPENAI_API_KEY", settings.Providers[0].APIKeyEnv)
	assert.Empty(t, settings.Providers[0].APIKey)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	service, store := newTestSettings(nil)
	_ = store.Set("chunking.size", 500)
	_ = store.Set("chunking.overlap", 50)
	_ = store.Set("retrieval.top_k", 4)
	_ = store.Set("retrieval.min_score", 0.2)
	_ = store.Set("retrieval.rerank", true)
	_ = store.Set("answering.mode", "ensemble")
	_ = store.Set("answering.fallback", true)
	_ = store.Set("answering.providers", []any{"gemini", "chatgpt"})
	_ = store.Set("evaluation.concurrency", 5)

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.ChunkingSettings{Size: 500, Overlap: 50}, settings.Chunking)
	assert.Equal(t, 4, settings.Retrieval.TopK)
	assert.InDelta(t, 0.2, settings.Retrieval.MinScore, 1e-9)
	assert.True(t, settings.Retrieval.Rerank)
	assert.Equal(t, domain.AnswerModeEnsemble, settings.Answering.Mode)
	assert.True(t, settings.Answering.Fallback)
	assert.Equal(t, []string{"gemini", "chatgpt"}, settings.Answering.Providers)
	assert.Equal(t, 5, settings.Evaluation.Concurrency)
}

func TestSettingsService_Get_ExplicitZeroOverridesDefault(t *testing.T) {
	service, store := newTestSettings(nil)
	_ = store.Set("retrieval.min_score", 0)
	_ = store.Set("retrieval.rewrite", false)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Zero(t, settings.Retrieval.MinScore)
	assert.False(t, settings.Retrieval.Rewrite)
}

func TestSettingsService_Get_InvalidConfig(t *testing.T) {
	tests := map[string]map[string]any{
		"overlap not below size": {"chunking.size": 100, "chunking.overlap": 100},
		"unknown mode":           {"answering.mode": "vote"},
		"unknown provider":       {"answering.providers": []string{"claude"}},
		"unknown embedder":       {"embedding.provider": "word2vec"},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			service, store := newTestSettings(nil)
			for k, v := range values {
				_ = store.Set(k, v)
			}
			_, err := service.Get()
			assert.Error(t, err)
		})
	}
}

func TestSettingsService_APIKeyResolution(t *testing.T) {
	service, store := newTestSettings(map[string]string{
		"OPENAI_API_KEY":   "sk-env",
		"MY_DEEPSEEK":      "ds-custom",
		"DEEPSEEK_API_KEY": "ds-default",
	})
	_ = store.Set("providers.deepseek.api_key_env", "MY_DEEPSEEK")
	_ = store.Set("providers.gemini.api_key", "gm-file")

	settings, err := service.Get()
	require.NoError(t, err)

	chatgpt, _ := settings.Provider("chatgpt")
	deepseek, _ := settings.Provider("deepseek")
	gemini, _ := settings.Provider("gemini")
	assert.Equal(t, "sk-env", chatgpt.APIKey)
	assert.Equal(t, "ds-custom", deepseek.APIKey)
	assert.Equal(t, "gm-file", gemini.APIKey)
}

func TestSettingsService_ExtraProvider(t *testing.T) {
	service, store := newTestSettings(nil)
	_ = store.Set("providers.local.kind", "ollama")
	_ = store.Set("providers.local.timeout_seconds", 120)
	_ = store.Set("providers.chatgpt.model", "gpt-4o")

	settings, err := service.Get()
	require.NoError(t, err)

	assert.Equal(t, []string{"chatgpt", "deepseek", "gemini", "local"}, providerIDs(settings.Providers))
	local, ok := settings.Provider("local")
	require.True(t, ok)
	assert.Equal(t, domain.ProviderKindOllama, local.Kind)
	assert.Equal(t, "llama3.2", local.Model)
	assert.Equal(t, 120*time.Second, local.Timeout)

	chatgpt, _ := settings.Provider("chatgpt")
	assert.Equal(t, "gpt-4o", chatgpt.Model)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	service, store := newTestSettings(map[string]string{"OPENAI_API_KEY": "sk-env"})

	settings, err := service.Get()
	require.NoError(t, err)
	settings.Retrieval.TopK = 3
	settings.Answering.Mode = domain.AnswerModeCompare
	require.NoError(t, service.Save(settings))

	_, hasKey := store.Get("providers.chatgpt.api_key")
	assert.False(t, hasKey, "environment keys are not persisted")

	reloaded, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Retrieval.TopK)
	assert.Equal(t, domain.AnswerModeCompare, reloaded.Answering.Mode)
	assert.Equal(t, settings.Providers, reloaded.Providers)
}

func TestSettingsService_SetAnswerMode(t *testing.T) {
	service, _ := newTestSettings(nil)

	require.NoError(t, service.SetAnswerMode(domain.AnswerModeEnsemble))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerModeEnsemble, settings.Answering.Mode)

	assert.ErrorIs(t, service.SetAnswerMode("vote"), domain.ErrInvalidInput)
}

func TestSettingsService_SetProvider(t *testing.T) {
	service, _ := newTestSettings(nil)

	require.NoError(t, service.SetProvider(domain.ProviderSettings{ID: "claude", Kind: domain.ProviderKindAnthropic, APIKey: "k"}))

	settings, err := service.Get()
	require.NoError(t, err)
	claude, ok := settings.Provider("claude")
	require.True(t, ok)
	assert.Equal(t, "claude-3-5-haiku-latest", claude.Model)
	assert.Equal(t, "k", claude.APIKey)
	assert.Equal(t, []string{"chatgpt", "deepseek", "gemini", "claude"}, settings.Answering.Providers)

	assert.ErrorIs(t, service.SetProvider(domain.ProviderSettings{ID: "x", Kind: "nope"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.SetProvider(domain.ProviderSettings{Kind: domain.ProviderKindOllama}), domain.ErrInvalidInput)
}

func providerIDs(ps []domain.ProviderSettings) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}
