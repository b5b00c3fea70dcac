package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates settings that cannot work together.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedType indicates an unknown MIME type or provider kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingMismatch indicates the query embedder differs from the one
	// the index was built with. This is a configuration error.
	ErrEmbeddingMismatch = errors.New("embedding model does not match index")

	// ErrNoProviders indicates no generation provider is configured or selected.
	ErrNoProviders = errors.New("no generation providers configured")

	// ErrProviderUnknown indicates a provider id that is not configured.
	ErrProviderUnknown = errors.New("unknown provider")
)

// IngestionError reports a document that could not be ingested.
// Ingestion of that document aborts; other documents proceed.
type IngestionError struct {
	DocumentID string
	Reason     string
	Err        error
}

func (e *IngestionError) Error() string {
	msg := fmt.Sprintf("ingest %s: %s", e.DocumentID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// IndexVersionMismatchError reports a persisted index built with a different
// embedding function than the configured one. The index must be rebuilt.
type IndexVersionMismatchError struct {
	Stored   IndexStamp
	Expected IndexStamp
}

func (e *IndexVersionMismatchError) Error() string {
	return fmt.Sprintf("index version mismatch: index built with %s, configured %s (run 'regula index rebuild')",
		e.Stored, e.Expected)
}

func (e *IndexVersionMismatchError) Unwrap() error {
	return ErrEmbeddingMismatch
}

// ProviderErrorKind classifies generation provider failures.
type ProviderErrorKind string

// Provider failure kinds.
const (
	ProviderErrorAuth      ProviderErrorKind = "AUTH"
	ProviderErrorRateLimit ProviderErrorKind = "RATE_LIMIT"
	ProviderErrorTimeout   ProviderErrorKind = "TIMEOUT"
	ProviderErrorUpstream  ProviderErrorKind = "UPSTREAM"
)

// ProviderError is returned by a generation provider call that failed.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider %s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// GroundingViolation records a generated answer whose citations could not
// be mapped back to supplied chunks. It always downgrades to abstention and
// is never shown to users as an error.
type GroundingViolation struct {
	Provider string
	Tag      string
	Reason   string
}

func (e *GroundingViolation) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("grounding violation from %s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("grounding violation from %s: %s %q", e.Provider, e.Reason, e.Tag)
}

// TransportFailure reports that every provider asked for a question failed.
// It is distinct from abstention.
type TransportFailure struct {
	Failures map[string]error
}

func (e *TransportFailure) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %v", id, e.Failures[id])
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// IsTransportFailure reports whether err is a TransportFailure.
func IsTransportFailure(err error) bool {
	var tf *TransportFailure
	return errors.As(err, &tf)
}
