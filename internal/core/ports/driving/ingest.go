package driving

import (
	"context"

	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// IngestStatus is a snapshot of one ingest run's progress.
type IngestStatus struct {
	// RunID uniquely identifies this run.
	RunID string

	// Title is the document being ingested.
	Title string

	// PagesProcessed counts committed pages so far.
	PagesProcessed int

	// ErrorCount counts non-fatal stage failures so far.
	ErrorCount int

	// Running is true while the run is in flight.
	Running bool
}

// Ingestor drives the enrichment pipeline for one document at a time.
// Documents supplied in one invocation are processed sequentially, one
// fully to completion before the next begins.
type Ingestor interface {
	// Ingest runs the pipeline for one document source. Already
	// materialised artifacts are skipped; lazy-fill stages still act on
	// artifacts with empty target fields.
	Ingest(ctx context.Context, source driven.DocumentSource) error

	// Status returns the current status for a document title, or nil
	// when no run is active for it.
	Status(title string) *IngestStatus
}
