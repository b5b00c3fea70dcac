package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// Prompt is a complete generation request.
type Prompt struct {
	// System holds the grounding instruction.
	System string

	// User holds the numbered context blocks and the question.
	User string

	// Temperature controls sampling.
	Temperature float64

	// MaxTokens caps the completion length.
	MaxTokens int
}

// Generation is the backend-neutral result of one call.
type Generation struct {
	Text    string
	Usage   domain.TokenUsage
	Latency time.Duration
	CostUSD float64
}

// ProviderAdapter is the uniform capability over one generation backend.
//
// Each variant owns its authentication, request shaping and error
// translation. Failures are returned as *domain.ProviderError. Adapters
// make exactly one attempt bounded by their timeout and never retry.
type ProviderAdapter interface {
	// ID returns the configured provider id.
	ID() string

	// Model returns the backend model name.
	Model() string

	// Generate sends the prompt and returns the generated text.
	Generate(ctx context.Context, prompt Prompt) (*Generation, error)

	// Timeout returns the bound applied to each call.
	Timeout() time.Duration

	// Ping validates the backend is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
