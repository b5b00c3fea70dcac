// Package mcp provides an MCP (Model Context Protocol) server adapter for Regula.
// It lets AI assistants ask grounded questions about the regulation corpus.
package mcp

import "errors"

var (
	// ErrMissingAskService is returned when the ask service is not provided.
	ErrMissingAskService = errors.New("mcp: ask service is required")

	// ErrMissingRetrievalService is returned when the retrieval service is not provided.
	ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
)
