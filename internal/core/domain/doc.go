// Package domain defines the core business entities for docstash.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested multi-page document
//   - Page: A single page with its raw sub-document, text and gist
//   - Figure: An image artifact extracted from a page
//   - Table: A tabular region detected on a page
//   - Section: A table-of-contents entry
//   - EmbeddingRecord: A vector embedding keyed by document and section
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
