package mcp

import (
	"github.com/custodia-labs/regula/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers questions with citations.
	Ask driving.AskService

	// Retrieval returns candidate chunks without generation.
	Retrieval driving.RetrievalService

	// Document browses ingested documents. Optional.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
