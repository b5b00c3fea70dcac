package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// maxErrorBody caps how much of an error response is kept in messages.
const maxErrorBody = 512

// ClassifyStatus maps a non-2xx HTTP response onto a provider error.
func ClassifyStatus(provider string, status int, body []byte) *domain.ProviderError {
	kind := domain.ProviderErrorUpstream
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ProviderErrorAuth
	case http.StatusTooManyRequests:
		kind = domain.ProviderErrorRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = domain.ProviderErrorTimeout
	}
	return &domain.ProviderError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: status,
		Err:        errors.New(truncate(strings.TrimSpace(string(body)), maxErrorBody)),
	}
}

// ClassifyTransport maps a failed round trip onto a provider error.
// Deadline expiry, from the context or the client, is a timeout.
func ClassifyTransport(provider string, err error) *domain.ProviderError {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	kind := domain.ProviderErrorUpstream
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = domain.ProviderErrorTimeout
	}
	return &domain.ProviderError{Provider: provider, Kind: kind, Err: err}
}

// Malformed reports a 2xx response the adapter could not use.
func Malformed(provider, format string, args ...any) *domain.ProviderError {
	return &domain.ProviderError{
		Provider:   provider,
		Kind:       domain.ProviderErrorUpstream,
		StatusCode: http.StatusOK,
		Err:        fmt.Errorf(format, args...),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
