package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driving"
)

// Ensure Library implements the interface.
var _ driving.LibraryService = (*Library)(nil)

// Library is the read-only facade over a finished store, backed by a
// LibraryStore and a DocumentAssembler for whole-document rendering.
type Library struct {
	store     driven.LibraryStore
	assembler driven.DocumentAssembler
}

// NewLibrary creates a library service.
func NewLibrary(store driven.LibraryStore, assembler driven.DocumentAssembler) *Library {
	return &Library{store: store, assembler: assembler}
}

// ListDocuments returns all documents without blob payloads.
func (l *Library) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return l.store.ListDocuments(ctx)
}

// GetDocument retrieves one document by id.
func (l *Library) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	return l.store.GetDocument(ctx, id)
}

// ListPages returns page metadata for a document in page order.
func (l *Library) ListPages(ctx context.Context, documentID int64) ([]driven.PageInfo, error) {
	return l.store.ListPages(ctx, documentID)
}

// PageData returns one raw single-page sub-document blob.
func (l *Library) PageData(ctx context.Context, documentID int64, pageNumber int) ([]byte, error) {
	return l.store.PageData(ctx, documentID, pageNumber)
}

// DocumentData reassembles the complete document from its stored pages.
func (l *Library) DocumentData(ctx context.Context, documentID int64) ([]byte, error) {
	pages, err := l.store.AllPageData(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("document %d: %w", documentID, domain.ErrNotFound)
	}
	data, err := l.assembler.Assemble(pages)
	if err != nil {
		return nil, fmt.Errorf("assemble document %d: %w", documentID, err)
	}
	return data, nil
}

// FigureData returns a figure's image bytes and media type.
func (l *Library) FigureData(ctx context.Context, figureID int64) ([]byte, string, error) {
	return l.store.FigureData(ctx, figureID)
}

// TableImage returns a table's rendered raster image.
func (l *Library) TableImage(ctx context.Context, tableID int64) ([]byte, error) {
	return l.store.TableImage(ctx, tableID)
}
