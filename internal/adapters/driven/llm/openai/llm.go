// Package openai provides a generation provider for the OpenAI chat
// completions API and the compatible APIs that mirror it (DeepSeek).
package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/regula/internal/adapters/driven/llm"
	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.ProviderAdapter = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-4o-mini"
	DeepSeekBaseURL      = "https://api.deepseek.com"
	DefaultDeepSeekModel = "deepseek-chat"
)

// Provider generates answers through a chat completions endpoint.
type Provider struct {
	*llm.Client
	apiKey string
}

// chatCompletionRequest is the /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

// chatCompletionMsg is the chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// New creates an OpenAI provider.
func New(cfg llm.Config) (*Provider, error) {
	return newProvider(cfg, DefaultBaseURL, DefaultModel)
}

// NewDeepSeek creates a provider for DeepSeek's OpenAI-compatible API.
func NewDeepSeek(cfg llm.Config) (*Provider, error) {
	return newProvider(cfg, DeepSeekBaseURL, DefaultDeepSeekModel)
}

func newProvider(cfg llm.Config, baseURL, model string) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = model
	}
	return &Provider{Client: llm.NewClient(cfg), apiKey: cfg.APIKey}, nil
}

// Generate sends the system and user messages as one completion request.
func (p *Provider) Generate(ctx context.Context, prompt driven.Prompt) (*driven.Generation, error) {
	req := chatCompletionRequest{
		Model: p.Model(),
		Messages: []chatCompletionMsg{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   prompt.MaxTokens,
		Temperature: prompt.Temperature,
	}

	start := time.Now()
	var resp chatCompletionResponse
	if err := p.PostJSON(ctx, "/chat/completions", p.headers(), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, llm.Malformed(p.ID(), "no response choices returned")
	}

	usage := domain.TokenUsage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
	}
	return &driven.Generation{
		Text:    resp.Choices[0].Message.Content,
		Usage:   usage,
		Latency: time.Since(start),
		CostUSD: llm.Cost(p.Model(), usage),
	}, nil
}

// Ping validates the API key against the /models endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	return p.Get(ctx, "/models", p.headers())
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}
