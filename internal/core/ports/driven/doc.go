// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor / ExtractorRegistry: raw bytes to ordered Sections
//   - Chunker: Sections to Chunks
//   - EmbeddingService: batch text embedding
//   - DocumentStore, ChunkStore, JobStore: owner-scoped persistence
//   - BlobStore: readable byte stream for a storage locator
//   - IngestionLock: unique in-flight marker per document
//   - JobQueue: hands admitted jobs to a bounded worker pool
//
// # Optional Interfaces
//
//   - LLMService: without it, grounded queries fail with ErrLLMUnavailable
//   - OwnerVerifier: required by network surfaces, not by the CLI
//   - PromptStore: without it, built-in prompts are used
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
