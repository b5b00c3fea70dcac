// Package llm holds the plumbing shared by the generation provider adapters:
// a pooled HTTP client, request pacing, error classification and pricing.
//
// Variants live in subpackages (openai, gemini, anthropic, ollama). Each one
// shapes its own request and response bodies and delegates transport to Client,
// which makes exactly one attempt per call.
package llm
