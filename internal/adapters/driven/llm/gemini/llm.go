// Package gemini provides a generation provider using the Gemini
// generateContent REST API.
package gemini

import (
	"context"
	"errors"
	"net/url"
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
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-1.5-flash"
)

// Provider generates answers through models/{model}:generateContent.
type Provider struct {
	*llm.Client
	apiKey string
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// generateRequest is the generateContent request format.
type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

// generateResponse is the generateContent response format.
type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

// New creates a Gemini provider.
func New(cfg llm.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
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

// Generate sends the prompt. When the response carries no usage metadata,
// token counts are estimated from word counts.
func (p *Provider) Generate(ctx context.Context, prompt driven.Prompt) (*driven.Generation, error) {
	req := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: prompt.System}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt.User}}}},
		GenerationConfig: generationConfig{
			Temperature:     prompt.Temperature,
			MaxOutputTokens: prompt.MaxTokens,
		},
	}

	start := time.Now()
	var resp generateResponse
	path := "/models/" + url.PathEscape(p.Model()) + ":generateContent"
	if err := p.PostJSON(ctx, path, p.headers(), req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, llm.Malformed(p.ID(), "prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, llm.Malformed(p.ID(), "no candidates returned")
	}

	var text strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		text.WriteString(pt.Text)
	}
	if text.Len() == 0 {
		return nil, llm.Malformed(p.ID(), "empty candidate (finish reason %s)", resp.Candidates[0].FinishReason)
	}

	var usage domain.TokenUsage
	if resp.UsageMetadata != nil {
		usage = domain.TokenUsage{
			Prompt:     resp.UsageMetadata.PromptTokenCount,
			Completion: resp.UsageMetadata.CandidatesTokenCount,
		}
	} else {
		usage = domain.TokenUsage{
			Prompt:     llm.EstimateTokens(prompt.System + " " + prompt.User),
			Completion: llm.EstimateTokens(text.String()),
		}
	}

	return &driven.Generation{
		Text:    text.String(),
		Usage:   usage,
		Latency: time.Since(start),
		CostUSD: llm.Cost(p.Model(), usage),
	}, nil
}

// Ping lists models, which validates the API key.
func (p *Provider) Ping(ctx context.Context) error {
	return p.Get(ctx, "/models", p.headers())
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"x-goog-api-key": p.apiKey}
}
