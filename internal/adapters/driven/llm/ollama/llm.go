// Package ollama provides a generation provider using a local Ollama server.
package ollama

import (
	"context"
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
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

// Provider generates answers through /api/chat. Local models cost nothing.
type Provider struct {
	*llm.Client
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// New creates an Ollama provider. No API key is needed.
func New(cfg llm.Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{Client: llm.NewClient(cfg)}
}

// Generate sends a non-streaming chat request.
func (p *Provider) Generate(ctx context.Context, prompt driven.Prompt) (*driven.Generation, error) {
	req := chatRequest{
		Model: p.Model(),
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Stream:  false,
		Options: options{NumPredict: prompt.MaxTokens, Temperature: prompt.Temperature},
	}

	start := time.Now()
	var resp chatResponse
	if err := p.PostJSON(ctx, "/api/chat", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Message.Content == "" {
		return nil, llm.Malformed(p.ID(), "empty message returned")
	}

	return &driven.Generation{
		Text:    resp.Message.Content,
		Usage:   domain.TokenUsage{Prompt: resp.PromptEvalCount, Completion: resp.EvalCount},
		Latency: time.Since(start),
	}, nil
}

// Ping checks the server via the /api/tags endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	return p.Get(ctx, "/api/tags", nil)
}
