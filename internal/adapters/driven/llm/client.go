package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// ErrHeld is returned when a provider asked us to back off past the call deadline.
var ErrHeld = errors.New("provider rate limit hold exceeds call deadline")

// Config is the transport configuration common to all variants.
type Config struct {
	// ID is the configured provider id (e.g. "chatgpt").
	ID string

	// Model is the backend model name.
	Model string

	// BaseURL is the API root.
	BaseURL string

	// APIKey authenticates the calls, when the backend needs one.
	APIKey string

	// Timeout bounds each call.
	Timeout time.Duration

	// RequestsPerMinute paces calls; zero disables pacing.
	RequestsPerMinute int

	// HTTPClient overrides the pooled client (tests).
	HTTPClient *http.Client
}

// Client performs single-attempt JSON calls on behalf of a provider variant.
type Client struct {
	id      string
	model   string
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *RateLimiter
}

// NewClient builds the shared transport for a variant.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = SharedHTTPClient(timeout)
	}
	return &Client{
		id:      cfg.ID,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		timeout: timeout,
		http:    httpClient,
		limiter: NewRateLimiter(cfg.RequestsPerMinute),
	}
}

// ID returns the provider id.
func (c *Client) ID() string { return c.id }

// Model returns the backend model name.
func (c *Client) Model() string { return c.model }

// Timeout returns the per-call bound.
func (c *Client) Timeout() time.Duration { return c.timeout }

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// PostJSON sends body to path and decodes a 2xx response into out.
// Every failure is a *domain.ProviderError.
func (c *Client) PostJSON(ctx context.Context, path string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &domain.ProviderError{Provider: c.id, Kind: domain.ProviderErrorUpstream,
			Err: fmt.Errorf("marshal request: %w", err)}
	}
	return c.do(ctx, http.MethodPost, path, headers, bytes.NewReader(payload), out)
}

// Get issues a GET and checks for a 2xx status, discarding the body.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) error {
	return c.do(ctx, http.MethodGet, path, headers, http.NoBody, nil)
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(err, ErrHeld) {
			return &domain.ProviderError{Provider: c.id, Kind: domain.ProviderErrorRateLimit, Err: err}
		}
		return ClassifyTransport(c.id, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &domain.ProviderError{Provider: c.id, Kind: domain.ProviderErrorUpstream,
			Err: fmt.Errorf("create request: %w", err)}
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ClassifyTransport(c.id, err)
	}
	defer resp.Body.Close()
	c.limiter.Observe(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyTransport(c.id, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ClassifyStatus(c.id, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Malformed(c.id, "decode response: %v", err)
	}
	return nil
}
