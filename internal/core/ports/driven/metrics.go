package driven

import "time"

// Metrics records operational measurements of the answer path.
type Metrics interface {
	// QueryFinished counts one question by mode and outcome.
	QueryFinished(mode, outcome string, elapsed time.Duration)

	// ProviderCall records one generation call. kind is empty on success.
	ProviderCall(provider, kind string, latency time.Duration, tokens int, costUSD float64)

	// GroundingViolation counts an answer downgraded for unresolvable citations.
	GroundingViolation(provider string)

	// ChunksIngested counts chunks written for a document.
	ChunksIngested(n int)
}
