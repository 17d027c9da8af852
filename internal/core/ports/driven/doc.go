// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - ArtifactStore: Transactional persistence of documents, pages,
//     figures, tables, sections and embeddings
//   - DocumentSource: Yields pages, figures and sections from an input file
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully by skipping the
// corresponding enrichment stage, writing no placeholder values:
//
//   - GenerativeService: Abstract, gist and figure-description stages
//   - EmbeddingService: Semantic embedding stage
//   - TableExtractor: Table extraction stage
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
