package driven

import (
	"context"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
)

// DocumentRef is the result of an idempotent document lookup.
// Created reports whether this call materialised the row, so callers
// branch on an explicit tag rather than a null sentinel.
type DocumentRef struct {
	// ID is the document row identifier.
	ID int64

	// Description is the existing abstract, nil if never generated.
	Description *string

	// Created is true when this call inserted the row.
	Created bool
}

// PageRef is the result of an idempotent page lookup.
type PageRef struct {
	// ID is the page row identifier.
	ID int64

	// Created is true when this call inserted the row. An existing page
	// is treated as previously processed: raw-extraction-dependent
	// stages are skipped, but lazy-fill stages still run.
	Created bool

	// HasGist is true when the page already carries a rolling summary.
	HasGist bool
}

// FigureData is an image payload recorded at page-creation time.
type FigureData struct {
	// Data is the raw image bytes.
	Data []byte

	// MIMEType is the image media type.
	MIMEType string
}

// PendingFigure is a figure whose description field is still unset.
type PendingFigure struct {
	// ID is the figure row identifier.
	ID int64

	// Data is the raw image bytes.
	Data []byte

	// MIMEType is the image media type.
	MIMEType string
}

// ArtifactStore opens transaction scopes over the relational store.
// It is the sole place that decides "already done" vs "needs work";
// every entity is created through get-or-create lookups keyed by
// natural identity, never by blind insert.
type ArtifactStore interface {
	// Begin opens a new transaction scope. The caller owns the commit
	// boundary; the store performs no implicit commits.
	Begin(ctx context.Context) (ArtifactTx, error)

	// Close releases the underlying connection.
	Close() error
}

// ArtifactTx is a single transaction scope over the artifact store.
// All mutations within one scope become durable together on Commit; a
// Rollback (or a crash) discards them, leaving the store in the state
// as of the last successful commit.
//
// Lookup or insert failures are fatal to the current document and must
// propagate: silently losing a row would corrupt the idempotence
// invariant for future runs.
type ArtifactTx interface {
	// ResolveOrCreateDocument looks a document up by title, creating it
	// with a null description if absent. An existing description is
	// never updated.
	ResolveOrCreateDocument(ctx context.Context, title string, pageCount int) (DocumentRef, error)

	// SetDocumentDescription fills in the abstract for a document.
	SetDocumentDescription(ctx context.Context, documentID int64, description string) error

	// RecordPage looks a page up by (document, page number), inserting
	// it if absent.
	RecordPage(ctx context.Context, documentID int64, pageNumber int, raw []byte, text string) (PageRef, error)

	// RecordFigures stores the figures extracted from a page. Only
	// called when the page was newly created; figures are extracted
	// once, at page-creation time, never re-extracted.
	RecordFigures(ctx context.Context, pageID int64, figures []FigureData) ([]int64, error)

	// PendingFigures returns exactly those figures on a page whose
	// description field is still unset. This is the lazy-fill query
	// that makes vision enrichment idempotent across runs and models.
	PendingFigures(ctx context.Context, pageID int64) ([]PendingFigure, error)

	// SetFigureDescription fills in a figure description.
	SetFigureDescription(ctx context.Context, figureID int64, description string) error

	// SetPageGist fills in a page's rolling summary.
	SetPageGist(ctx context.Context, pageID int64, gist string) error

	// InsertSectionIfAbsent records a table-of-contents entry unless a
	// section with the same (document, title) pair already exists.
	// Returns the row id and whether this call inserted it.
	InsertSectionIfAbsent(ctx context.Context, documentID int64, title string, startPage int) (int64, bool, error)

	// InsertTable appends a detected table. Tables are not deduplicated
	// by content.
	InsertTable(ctx context.Context, pageID int64, table domain.Table) (int64, error)

	// CountEmbeddings reports how many embedding rows exist for a
	// document.
	CountEmbeddings(ctx context.Context, documentID int64) (int, error)

	// SaveEmbeddings stores the embedding stage's vector records.
	SaveEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error

	// Commit makes all mutations in this scope durable.
	Commit() error

	// Rollback discards all mutations in this scope. Safe to call
	// after Commit; it then does nothing.
	Rollback() error
}
