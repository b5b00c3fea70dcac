package services

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
	"github.com/custodia-labs/regula/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyChunkSize       = "chunking.size"
	keyChunkOverlap    = "chunking.overlap"
	keyTopK            = "retrieval.top_k"
	keyMinScore        = "retrieval.min_score"
	keyRewrite         = "retrieval.rewrite"
	keyRerank          = "retrieval.rerank"
	keyRerankKeep      = "retrieval.rerank_keep"
	keyAnswerMode      = "answering.mode"
	keyAnswerProviders = "answering.providers"
	keyFallback        = "answering.fallback"
	keyTemperature     = "answering.temperature"
	keyMaxTokens       = "answering.max_tokens"
	keyOffice          = "answering.suggested_office"
	keyEvalConcurrency = "evaluation.concurrency"
	keyEvalThreshold   = "evaluation.semantic_threshold"

	providersPrefix = "providers."
)

// Per-provider keys under providers.<id>.
const (
	providerKind       = "kind"
	providerModel      = "model"
	providerBaseURL    = "base_url"
	providerAPIKey     = "api_key"
	providerAPIKeyEnv  = "api_key_env"
	providerTimeout    = "timeout_seconds"
	providerRPM        = "requests_per_minute"
	embeddingAPIKeyEnv = "OPENAI_API_KEY"
)

// SettingsService maps the flat configuration store onto AppSettings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// API keys not present in the store are read from the process environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment lookup used for API keys.
func (s *SettingsService) SetEnvLookup(fn func(string) (string, bool)) {
	s.lookupEnv = fn
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   domain.EmbeddingProvider(s.getString(keyEmbedProvider, string(defaults.Embedding.Provider))),
			Model:      s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDims, defaults.Embedding.Dimensions),
		},
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:       s.getInt(keyTopK, defaults.Retrieval.TopK),
			MinScore:   s.getFloat(keyMinScore, defaults.Retrieval.MinScore),
			Rewrite:    s.getBool(keyRewrite, defaults.Retrieval.Rewrite),
			Rerank:     s.getBool(keyRerank, defaults.Retrieval.Rerank),
			RerankKeep: s.getInt(keyRerankKeep, defaults.Retrieval.RerankKeep),
		},
		Answering: domain.AnsweringSettings{
			Mode:            domain.AnswerMode(s.getString(keyAnswerMode, string(defaults.Answering.Mode))),
			Providers:       s.getStringSlice(keyAnswerProviders, defaults.Answering.Providers),
			Fallback:        s.getBool(keyFallback, defaults.Answering.Fallback),
			Temperature:     s.getFloat(keyTemperature, defaults.Answering.Temperature),
			MaxTokens:       s.getInt(keyMaxTokens, defaults.Answering.MaxTokens),
			SuggestedOffice: s.getString(keyOffice, defaults.Answering.SuggestedOffice),
		},
		Providers: s.getProviders(defaults.Providers),
		Evaluation: domain.EvaluationSettings{
			Concurrency:       s.getInt(keyEvalConcurrency, defaults.Evaluation.Concurrency),
			SemanticThreshold: s.getFloat(keyEvalThreshold, defaults.Evaluation.SemanticThreshold),
		},
	}

	if settings.Embedding.APIKey == "" && settings.Embedding.Provider.RequiresAPIKey() {
		settings.Embedding.APIKey = s.env(embeddingAPIKeyEnv)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// getProviders builds provider settings. Providers named in the defaults keep
// the default order; additional ones follow sorted by id.
func (s *SettingsService) getProviders(defaults []domain.ProviderSettings) []domain.ProviderSettings {
	byID := make(map[string]domain.ProviderSettings, len(defaults))
	order := make([]string, 0, len(defaults))
	for _, p := range defaults {
		byID[p.ID] = p
		order = append(order, p.ID)
	}

	var extra []string
	for _, id := range s.configuredProviderIDs() {
		if _, ok := byID[id]; !ok {
			extra = append(extra, id)
			byID[id] = domain.ProviderSettings{ID: id, Kind: domain.ProviderKind(id), Timeout: 60 * time.Second}
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	models := domain.DefaultProviderModels()
	result := make([]domain.ProviderSettings, 0, len(order))
	for _, id := range order {
		p := byID[id]
		base := providersPrefix + id + "."

		if kind := s.configStore.GetString(base + providerKind); kind != "" {
			p.Kind = domain.ProviderKind(kind)
		}
		p.Model = s.getString(base+providerModel, p.Model)
		if p.Model == "" {
			p.Model = models[p.Kind]
		}
		p.BaseURL = s.getString(base+providerBaseURL, p.BaseURL)
		if secs := s.configStore.GetInt(base + providerTimeout); secs > 0 {
			p.Timeout = time.Duration(secs) * time.Second
		}
		p.RequestsPerMinute = s.getInt(base+providerRPM, p.RequestsPerMinute)

		p.APIKeyEnv = s.getString(base+providerAPIKeyEnv, p.Kind.DefaultAPIKeyEnv())
		p.APIKey = s.configStore.GetString(base + providerAPIKey)
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = s.env(p.APIKeyEnv)
		}

		result = append(result, p)
	}
	return result
}

// configuredProviderIDs returns the provider ids present in the store.
func (s *SettingsService) configuredProviderIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, key := range s.configStore.Keys(providersPrefix) {
		rest := strings.TrimPrefix(key, providersPrefix)
		id, _, ok := strings.Cut(rest, ".")
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

type setting struct {
	key   string
	value any
}

// Save persists application settings.
// API keys that came from the environment are not written to the store.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []setting{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyTopK, settings.Retrieval.TopK},
		{keyMinScore, settings.Retrieval.MinScore},
		{keyRewrite, settings.Retrieval.Rewrite},
		{keyRerank, settings.Retrieval.Rerank},
		{keyRerankKeep, settings.Retrieval.RerankKeep},
		{keyAnswerMode, settings.Answering.Mode.String()},
		{keyAnswerProviders, settings.Answering.Providers},
		{keyFallback, settings.Answering.Fallback},
		{keyTemperature, settings.Answering.Temperature},
		{keyMaxTokens, settings.Answering.MaxTokens},
		{keyOffice, settings.Answering.SuggestedOffice},
		{keyEvalConcurrency, settings.Evaluation.Concurrency},
		{keyEvalThreshold, settings.Evaluation.SemanticThreshold},
	}
	if settings.Embedding.APIKey != "" && settings.Embedding.APIKey != s.env(embeddingAPIKeyEnv) {
		values = append(values, setting{keyEmbedAPIKey, settings.Embedding.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	for _, p := range settings.Providers {
		if err := s.saveProvider(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *SettingsService) saveProvider(p domain.ProviderSettings) error {
	base := providersPrefix + p.ID + "."
	values := map[string]any{
		providerKind:      p.Kind.String(),
		providerModel:     p.Model,
		providerTimeout:   int(p.Timeout / time.Second),
		providerAPIKeyEnv: p.APIKeyEnv,
	}
	if p.BaseURL != "" {
		values[providerBaseURL] = p.BaseURL
	}
	if p.RequestsPerMinute > 0 {
		values[providerRPM] = p.RequestsPerMinute
	}
	if p.APIKey != "" && (p.APIKeyEnv == "" || p.APIKey != s.env(p.APIKeyEnv)) {
		values[providerAPIKey] = p.APIKey
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.configStore.Set(base+k, values[k]); err != nil {
			return fmt.Errorf("save provider %s %s: %w", p.ID, k, err)
		}
	}
	return nil
}

// SetAnswerMode updates the default answer mode.
func (s *SettingsService) SetAnswerMode(mode domain.AnswerMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: invalid answer mode: %s", domain.ErrInvalidInput, mode)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Answering.Mode = mode
	return s.Save(settings)
}

// SetProvider adds or replaces a provider definition.
// A new provider is appended to the answering order.
func (s *SettingsService) SetProvider(p domain.ProviderSettings) error {
	if p.ID == "" {
		return fmt.Errorf("%w: provider id is required", domain.ErrInvalidInput)
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: invalid provider kind: %s", domain.ErrInvalidInput, p.Kind)
	}
	if p.Model == "" {
		p.Model = domain.DefaultProviderModels()[p.Kind]
	}
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = p.Kind.DefaultAPIKeyEnv()
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	replaced := false
	for i := range settings.Providers {
		if settings.Providers[i].ID == p.ID {
			settings.Providers[i] = p
			replaced = true
		}
	}
	if !replaced {
		settings.Providers = append(settings.Providers, p)
		settings.Answering.Providers = append(settings.Answering.Providers, p.ID)
	}
	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) env(name string) string {
	if name == "" || s.lookupEnv == nil {
		return ""
	}
	v, _ := s.lookupEnv(name)
	return strings.TrimSpace(v)
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	if v := s.configStore.GetStringSlice(key); len(v) > 0 {
		return v
	}
	return append([]string(nil), defaultVal...)
}
