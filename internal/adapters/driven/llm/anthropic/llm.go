// Package anthropic provides a generation provider using the Anthropic Messages API.
package anthropic

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
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 1024

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Provider generates answers through /v1/messages.
type Provider struct {
	*llm.Client
	apiKey string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// New creates an Anthropic provider.
func New(cfg llm.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{Client: llm.NewClient(cfg), apiKey: cfg.APIKey}, nil
}

// Generate sends the prompt, passing the system instruction in the top-level field.
func (p *Provider) Generate(ctx context.Context, prompt driven.Prompt) (*driven.Generation, error) {
	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		// The API rejects requests without max_tokens.
		maxTokens = DefaultMaxTokens
	}
	req := messagesRequest{
		Model:       p.Model(),
		Messages:    []messagesMessage{{Role: "user", Content: prompt.User}},
		MaxTokens:   maxTokens,
		System:      prompt.System,
		Temperature: prompt.Temperature,
	}

	start := time.Now()
	var resp messagesResponse
	if err := p.PostJSON(ctx, "/v1/messages", p.headers(), req, &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, llm.Malformed(p.ID(), "no text content returned")
	}

	usage := domain.TokenUsage{Prompt: resp.Usage.InputTokens, Completion: resp.Usage.OutputTokens}
	return &driven.Generation{
		Text:    text.String(),
		Usage:   usage,
		Latency: time.Since(start),
		CostUSD: llm.Cost(p.Model(), usage),
	}, nil
}

// Ping validates the API key against the /v1/models endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	return p.Get(ctx, "/v1/models", p.headers())
}

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
}
