package mcp

import (
	"context"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driving"
)

// mockLibrary is a scriptable LibraryService for handler tests.
type mockLibrary struct {
	documents  []domain.Document
	pages      map[int64][]driven.PageInfo
	pageData   map[string][]byte
	docData    map[int64][]byte
	figureData map[int64][]byte
	figureMIME map[int64]string
	tableImage map[int64][]byte
	err        error
}

var _ driving.LibraryService = (*mockLibrary)(nil)

func (m *mockLibrary) ListDocuments(context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockLibrary) GetDocument(_ context.Context, id int64) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.documents {
		if m.documents[i].ID == id {
			return &m.documents[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockLibrary) ListPages(_ context.Context, documentID int64) ([]driven.PageInfo, error) {
	return m.pages[documentID], m.err
}

func (m *mockLibrary) PageData(_ context.Context, documentID int64, pageNumber int) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	key := pageURI(documentID, pageNumber)
	data, ok := m.pageData[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *mockLibrary) DocumentData(_ context.Context, documentID int64) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.docData[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *mockLibrary) FigureData(_ context.Context, figureID int64) ([]byte, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	data, ok := m.figureData[figureID]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return data, m.figureMIME[figureID], nil
}

func (m *mockLibrary) TableImage(_ context.Context, tableID int64) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.tableImage[tableID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}
