package driving

import (
	"context"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// LibraryService exposes a finished store read-only to serving
// adapters. This is used by the MCP adapter.
type LibraryService interface {
	// ListDocuments returns all documents without blob payloads.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// GetDocument retrieves one document by id.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// ListPages returns page metadata for a document in page order.
	ListPages(ctx context.Context, documentID int64) ([]driven.PageInfo, error)

	// PageData returns one raw single-page sub-document blob.
	PageData(ctx context.Context, documentID int64, pageNumber int) ([]byte, error)

	// DocumentData reassembles the complete document from its stored
	// pages.
	DocumentData(ctx context.Context, documentID int64) ([]byte, error)

	// FigureData returns a figure's image bytes and media type.
	FigureData(ctx context.Context, figureID int64) ([]byte, string, error)

	// TableImage returns a table's rendered raster image.
	TableImage(ctx context.Context, tableID int64) ([]byte, error)
}
