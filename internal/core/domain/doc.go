// Package domain defines the core business entities for Regula.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: an acquisition tuple handed over for ingestion
//   - Document: a cleaned, page-structured regulation text
//   - Chunk: the atomic unit of retrieval, with page and section locators
//   - RetrievalResult: ranked chunk ids with similarity scores
//   - Answer and Citation: the grounded (or abstained) response
//   - Report: evaluation output over a gold question set
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
