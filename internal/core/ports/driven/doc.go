// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Normaliser: Transforms raw bytes into a page-structured Document
//   - PostProcessorPipeline: Splits documents into chunks and annotates them
//   - DocumentStore: Document and chunk persistence
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Exhaustive similarity search over chunk vectors
//   - IndexStore: Durable snapshots of the vector index
//   - ProviderAdapter: One generation backend (ChatGPT, DeepSeek, Gemini, ...)
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Metrics: Operational counters and histograms. Nil records nothing.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
