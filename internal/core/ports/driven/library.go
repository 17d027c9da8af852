package driven

import (
	"context"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
)

// PageInfo is a page's metadata without its blob payloads.
type PageInfo struct {
	// ID is the page row identifier.
	ID int64

	// DocumentID links to the owning document.
	DocumentID int64

	// Number is the 1-based page number.
	Number int

	// Gist is the rolling summary, nil when never generated.
	Gist *string

	// TextLength is the length of the extracted text in bytes.
	TextLength int

	// DataLength is the length of the raw page blob in bytes.
	DataLength int
}

// LibraryStore is the read-only view over a finished store, consumed
// by the resource-serving layer.
type LibraryStore interface {
	// ListDocuments returns all documents, without blob payloads.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// GetDocument retrieves one document by id.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// ListPages returns page metadata for a document in page order.
	ListPages(ctx context.Context, documentID int64) ([]PageInfo, error)

	// PageData returns the raw single-page sub-document blob.
	PageData(ctx context.Context, documentID int64, pageNumber int) ([]byte, error)

	// AllPageData returns every page blob of a document in page order.
	AllPageData(ctx context.Context, documentID int64) ([][]byte, error)

	// FigureData returns a figure's image bytes and media type.
	FigureData(ctx context.Context, figureID int64) ([]byte, string, error)

	// TableImage returns a table's rendered raster image.
	TableImage(ctx context.Context, tableID int64) ([]byte, error)
}
